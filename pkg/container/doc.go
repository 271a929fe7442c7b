/*
Package container implements computed containers: folders whose child
set is produced by reconciliation instead of user edits.

A Container owns a case-insensitive child map, schedules computations
through the host queue, mediates all child access during a run through
a child observer, applies orphan retention after each reconciliation,
and cascades deletes through its descendants. Periodic triggers and the
out-of-band event log hang off the container as well.
*/
package container
