/*
Package telemetry persists per-container run history in BoltDB.

Every terminal computation appends a RunRecord (timestamp, duration,
result); history is capped per container and read newest-first by the
health reporting layer and by duration estimation after a restart.
*/
package telemetry
