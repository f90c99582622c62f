// Package config loads the engine's configuration from a YAML file with
// environment-variable overrides for the database connection fields
// (except ssl_mode and pool_size), upstream host/port, max retries,
// chunk months, voucher workers, default sync origin, log level and
// environment, following the dual loader pattern used across the
// ingestion fleet (YAML-first with os.Getenv overrides applied
// afterward). The upstream timeouts, template directory, charge-bucket
// patterns and misfire grace have no environment override.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Sync      SyncConfig      `yaml:"sync"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	PoolSize int    `yaml:"pool_size"`
}

type UpstreamConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ConnectTimeout int    `yaml:"connect_timeout_seconds"`
	ReadTimeout    int    `yaml:"read_timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	TemplateDir    string `yaml:"template_dir"`
}

type SyncConfig struct {
	DefaultSyncFrom      string   `yaml:"default_sync_from"`
	SnapshotChunkMonths  int      `yaml:"snapshot_chunk_months"`
	VoucherWorkers       int      `yaml:"voucher_workers"`
	ChargeBucketPatterns []string `yaml:"charge_bucket_patterns"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

type SchedulerConfig struct {
	MisfireGraceSeconds int `yaml:"misfire_grace_seconds"`
}

// ApplyDefaults fills unset fields with the engine's compiled-in
// defaults: chunk width, worker count, and default sync origin are all
// configurable here, never constants baked into the orchestrator.
func (c *Config) ApplyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.PoolSize == 0 {
		c.Database.PoolSize = 16
	}
	if c.Upstream.Port == 0 {
		c.Upstream.Port = 9000
	}
	if c.Upstream.ConnectTimeout == 0 {
		c.Upstream.ConnectTimeout = 60
	}
	if c.Upstream.ReadTimeout == 0 {
		c.Upstream.ReadTimeout = 1800
	}
	if c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = 5
	}
	if c.Sync.DefaultSyncFrom == "" {
		c.Sync.DefaultSyncFrom = "20240401"
	}
	if c.Sync.SnapshotChunkMonths == 0 {
		c.Sync.SnapshotChunkMonths = 3
	}
	if c.Sync.VoucherWorkers == 0 {
		c.Sync.VoucherWorkers = 8
	}
	if len(c.Sync.ChargeBucketPatterns) == 0 {
		c.Sync.ChargeBucketPatterns = DefaultChargeBucketPatterns
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "development"
	}
	if c.Scheduler.MisfireGraceSeconds == 0 {
		c.Scheduler.MisfireGraceSeconds = 300
	}
}

// DefaultChargeBucketPatterns are the "other charges" classification
// regexes, shipped as configurable defaults rather than a hardcoded
// heuristic.
var DefaultChargeBucketPatterns = []string{
	`freight`,
	`forwarding`,
	`\bdca\b`,
	`clearing\s*&?\s*forwarding`,
	`packing`,
	`insurance`,
}

// LoadConfig reads a YAML file, unmarshals it, applies env var overrides,
// then fills remaining defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config yaml")
		}
	}
	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TALLY_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("TALLY_DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.Port = n
		}
	}
	if v := os.Getenv("TALLY_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("TALLY_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("TALLY_DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("TALLY_UPSTREAM_HOST"); v != "" {
		c.Upstream.Host = v
	}
	if v := os.Getenv("TALLY_UPSTREAM_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Upstream.Port = n
		}
	}
	if v := os.Getenv("TALLY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Upstream.MaxRetries = n
		}
	}
	if v := os.Getenv("TALLY_CHUNK_MONTHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.SnapshotChunkMonths = n
		}
	}
	if v := os.Getenv("TALLY_VOUCHER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.VoucherWorkers = n
		}
	}
	if v := os.Getenv("TALLY_SYNC_FROM"); v != "" {
		c.Sync.DefaultSyncFrom = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Logging.Environment = v
	}
}

// PostgresDSN builds a libpq-style connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode,
	)
}

// UpstreamBaseURL builds the single endpoint the Upstream Client POSTs to.
func (c *Config) UpstreamBaseURL() string {
	return fmt.Sprintf("http://%s:%d/", c.Upstream.Host, c.Upstream.Port)
}
