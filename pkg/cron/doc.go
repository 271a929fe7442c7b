/*
Package cron drives periodic triggers on a wall-clock minute tick.

The loop keeps an internal reference minute and catches up one minute
at a time after a suspension, so a paused process still fires each
intended minute exactly once. Trigger panics are caught and logged; one
misbehaving trigger never starves the rest.
*/
package cron
