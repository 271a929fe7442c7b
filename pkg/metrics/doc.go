/*
Package metrics exports Rookery's Prometheus instrumentation.

All collectors are package-level variables registered in init, covering
computation throughput and duration, queue depth and admission refusals,
orphan retention, child store loads, event log rotation and cron ticks.
Handler exposes the standard promhttp endpoint for scraping.
*/
package metrics
