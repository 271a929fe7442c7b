/*
Package computation runs a single reconciliation of a computed
container and records its outcome.

A Computation owns the run's log file (rotated per run when backups are
configured), measures the run's duration into a rolling per-container
history, and persists a small XML record next to the log so the last
outcome and the duration history survive a restart. The terminal result
becomes observable atomically only after the log has been sealed.
*/
package computation
