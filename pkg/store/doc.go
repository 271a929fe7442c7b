/*
Package store owns the on-disk layout of a container's children.

Children live under jobs/<dirName>/ with a config.xml each. Load walks
the jobs directory and isolates per-child failures: a missing config, a
factory error, a relocation collision or a duplicate business name
skips that child with a warning and leaves the rest of the load intact.
Business names are resolved from the child's own configuration first,
then the name sidecar, then legacy inference from the directory name,
and directories are relocated in place when the active mangler expects
a different name. Load progress is exposed as cumulative counters for
hosts that surface loading state.
*/
package store
