/*
Package events distributes container lifecycle events in-process.

The broker fans published events out to subscriber channels; slow
subscribers drop rather than block publishers. A Recorder can drain a
subscription into a container's rotating event log.
*/
package events
