/*
Package config loads the process-wide Rookery tunables.

Configuration comes from a YAML file with environment overrides for the
operational knobs (THROTTLE_LIMIT, BACKUP_LOG_COUNT,
EVENT_LOG_MAX_SIZE_KB, HEALTH_REPORT_CACHE_MIN). Values are clamped to
their documented ranges after loading, so the rest of the system never
sees an out-of-range tunable.
*/
package config
