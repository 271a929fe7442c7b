/*
Package eventlog implements the rotating out-of-band event log.

A Writer is multi-producer, single-consumer: producers open streams
that buffer up to 1 KiB and enqueue whole lines without blocking, and a
single flush goroutine batches pending lines to disk. The target file
is re-resolved from a supplier on every flush and closed again
afterwards, so the surrounding container directory can be moved or
deleted by other processes between flushes. Rotation renames the
primary to .1, shifting older backups and dropping those beyond the
configured count. All flush I/O errors are swallowed after being
logged once; they never propagate to producers.
*/
package eventlog
