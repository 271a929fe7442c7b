/*
Package health derives per-container health reports from run history.

Reports are expensive to recompute across a large tree, so they are
cached with a jittered TTL: each entry expires uniformly within the
second half of the configured window, which spreads refreshes instead
of stampeding them all on the same minute.
*/
package health
