/*
Package observer provides the per-name coordination primitive that
mediates every child interaction during a reconciliation run.

An Observer guarantees at most one concurrent holder per child name:
ShouldUpdate claims a name, blocking interruptibly while another
goroutine holds it, and Completed or Close releases it. Along the way
the observer tracks which names were observed and which children from
the starting snapshot were never re-seen; the latter form the orphan
set handed to the retention strategy when the run finishes.

Two flavours exist: the reconciliation observer starts with the current
child names as orphans, while the events observer (for out-of-band
handlers) starts empty and never reports orphans.
*/
package observer
