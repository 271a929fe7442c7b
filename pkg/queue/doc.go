/*
Package queue is the in-process build queue driving computations.

Tasks are keyed by container full name. Scheduling the same key twice
coalesces to the earliest due time; a key already running refuses new
schedules until it finishes. Admission hooks (the global throttle, the
disabled-ancestor gate) vet every dispatch and can park an item
indefinitely without losing it. A fixed worker pool executes dispatched
items; the delete cascade sweeps pending items and interrupts running
ones by key prefix.
*/
package queue
