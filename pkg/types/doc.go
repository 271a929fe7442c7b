/*
Package types defines the core data structures shared across Rookery.

It holds the terminal Result values of a computation, the Cause records
attached to scheduled runs, the Child and Group views that the naming
and storage layers operate on, and the error kinds of the core's
failure taxonomy (user errors, invariant violations, cancellation).

Children are host-owned: the core only sees the capabilities a child
chooses to expose (Buildable, Pinned, Deletable). Optional behaviour is
modelled as small capability interfaces checked by type assertion, so a
leaf item and a nested container can share one child map.
*/
package types
