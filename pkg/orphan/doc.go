/*
Package orphan decides which dropped children a computation may delete.

A child that existed when a reconciliation started and was never
re-observed by its end is an orphan. The default strategy sorts orphans
newest-first by last build time and keeps up to NumToKeep of them, plus
anything built within DaysToKeep days; children that are still building
or carry a kept build are always retained. Strategies only select, the
owning container performs the deletions under a service-level identity.
*/
package orphan
