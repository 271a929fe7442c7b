/*
Package naming bridges business names and on-disk directory names.

A Mangler deterministically maps the stable, user-visible business name
of a child to a filesystem-safe directory name: portable characters
only, at most 32 bytes, never a reserved name, insensitive to NFC/NFD
normalization. The reverse mapping is recovered through the name
sidecar file (name-utf8.txt) written next to each child's
configuration, with a legacy inference path for directories that
pre-date the sidecar.
*/
package naming
