/*
Package throttle caps concurrent computations process-wide.

The cap is independent of the host's executor count. Admission works on
a one-second reservation window: an item approved within the last
second stays approved, so repeated queue checks for the same item never
double-count, while new arrivals are rate-limited against the sum of
in-flight runs and fresh reservations.
*/
package throttle
