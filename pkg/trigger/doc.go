/*
Package trigger schedules periodic computations for a container.

A trigger is configured with a human interval string ("30m", "1h",
"7d"). On each minute tick it compares the owner's last computation
timestamp against a slightly shortened interval, compensating for
minute-granularity dispatch and the enqueue delay, and schedules the
next run when due. A coarse check cadence derived from the interval
keeps long-interval triggers from being polled every minute.
*/
package trigger
