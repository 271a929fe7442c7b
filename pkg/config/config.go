package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized on top of the config file.
const (
	EnvThrottleLimit     = "THROTTLE_LIMIT"
	EnvBackupLogCount    = "BACKUP_LOG_COUNT"
	EnvEventLogMaxSizeKB = "EVENT_LOG_MAX_SIZE_KB"
	EnvHealthCacheMin    = "HEALTH_REPORT_CACHE_MIN"
)

// Config holds the process-wide tunables for a Rookery instance.
type Config struct {
	// DataDir is the root under which all container trees live.
	DataDir string `yaml:"data_dir"`

	// Executors is the size of the build executor pool.
	Executors int `yaml:"executors"`

	// ThrottleLimit caps concurrent computations platform-wide.
	// Zero means the default of min(5, 4 x cpus).
	ThrottleLimit int `yaml:"throttle_limit"`

	// BackupLogCount is the number of rotated computation logs to
	// retain. Zero disables rotation.
	BackupLogCount int `yaml:"backup_log_count"`

	// EventLogMaxSizeKB is the event log rotation size in KiB.
	EventLogMaxSizeKB int `yaml:"event_log_max_size_kb"`

	// HealthReportCacheMin is the number of minutes between health
	// report refreshes, clamped to [10, 1440].
	HealthReportCacheMin int `yaml:"health_report_cache_min"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:              "/var/lib/rookery",
		Executors:            4,
		ThrottleLimit:        DefaultThrottleLimit(),
		BackupLogCount:       0,
		EventLogMaxSizeKB:    150,
		HealthReportCacheMin: 60,
		MetricsAddr:          ":9464",
		LogLevel:             "info",
	}
}

// DefaultThrottleLimit is min(5, 4 x available processors).
func DefaultThrottleLimit() int {
	limit := 4 * runtime.NumCPU()
	if limit > 5 {
		limit = 5
	}
	return limit
}

// Load reads a YAML config file, applies environment overrides and
// normalizes the result. A missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.applyEnv()
				cfg.normalize()
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := envInt(EnvThrottleLimit); ok {
		c.ThrottleLimit = v
	}
	if v, ok := envInt(EnvBackupLogCount); ok {
		c.BackupLogCount = v
	}
	if v, ok := envInt(EnvEventLogMaxSizeKB); ok {
		c.EventLogMaxSizeKB = v
	}
	if v, ok := envInt(EnvHealthCacheMin); ok {
		c.HealthReportCacheMin = v
	}
}

func (c *Config) normalize() {
	if c.Executors <= 0 {
		c.Executors = 4
	}
	if c.ThrottleLimit <= 0 {
		c.ThrottleLimit = DefaultThrottleLimit()
	}
	if c.BackupLogCount < 0 {
		c.BackupLogCount = 0
	}
	if c.EventLogMaxSizeKB <= 0 {
		c.EventLogMaxSizeKB = 150
	}
	if c.HealthReportCacheMin < 10 {
		c.HealthReportCacheMin = 10
	}
	if c.HealthReportCacheMin > 1440 {
		c.HealthReportCacheMin = 1440
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
