/*
Package log provides structured logging for Rookery using zerolog.

It wraps the zerolog library with a global logger initialized via
Init, component-scoped child loggers (WithComponent, WithContainer,
WithComputation) and helpers for the common one-line patterns. Output
is JSON in production and a console writer for interactive use.
*/
package log
