// Package config provides configuration management for the schedule
// ingest worker.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, WORKER_ID)
// 3. Default values
package config

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	States   StateNames     `mapstructure:"states"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	Schema   string `mapstructure:"schema"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// WorkerConfig contains lease, lifecycle, and polling settings (§4.8, §5).
type WorkerConfig struct {
	// ID is this process's lease identity (locked_by), a worker id rather
	// than the OS pid — see Open Question (1) in DESIGN.md. When WORKER_ID
	// is unset, a fresh random id is generated on every Load; only a pinned
	// WORKER_ID stays the same across restarts.
	ID string `mapstructure:"id"`

	LeaseTimeoutSeconds       int `mapstructure:"lease_timeout_seconds"`
	LeaseHeartbeatSeconds     int `mapstructure:"lease_heartbeat_seconds"`
	SessionIdleTimeoutSeconds int `mapstructure:"session_idle_timeout_seconds"`
	PollSeconds               int `mapstructure:"poll_seconds"`
	SummaryThreshold          int `mapstructure:"summary_threshold"`
	TimeToleranceMinutes      int `mapstructure:"time_tolerance_minutes"`
	IngestPoolSize            int `mapstructure:"ingest_pool_size"`

	// BlobStoreRoot is the local-disk root FileBlobStore reads r2_key
	// paths relative to (§6 "Collaborator pipeline implementations").
	BlobStoreRoot string `mapstructure:"blob_store_root"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// StateNames aliases the capture_session.state enum values so test
// schemas can rename states without code changes (§6).
type StateNames struct {
	Pending    string `mapstructure:"pending"`
	Processing string `mapstructure:"processing"`
	Done       string `mapstructure:"done"`
	Failed     string `mapstructure:"failed"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scheduleworker")

	// No prefix: uses standard names like DATABASE_URL, WORKER_ID, LOG_LEVEL.
	// Maps nested config: worker.poll_seconds → WORKER_POLL_SECONDS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional; use defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureWorkerID(); err != nil {
		return nil, fmt.Errorf("ensure worker id: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Worker.ID == "" {
		return fmt.Errorf("worker.id must not be empty")
	}
	if 3*c.Worker.LeaseHeartbeatSeconds >= c.Worker.LeaseTimeoutSeconds {
		return fmt.Errorf(
			"worker.lease_heartbeat_seconds (%d) must satisfy 3*heartbeat < timeout (%d)",
			c.Worker.LeaseHeartbeatSeconds, c.Worker.LeaseTimeoutSeconds,
		)
	}
	return nil
}

// ensureWorkerID generates a random worker id when WORKER_ID is not set
// (a new one on each call, so each process start gets its own), so lease
// ownership is never compared against a process PID (Open Question (1)).
func (c *Config) ensureWorkerID() error {
	if c.Worker.ID != "" {
		return nil
	}
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Errorf("crypto/rand: %w", err)
	}
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return fmt.Errorf("build worker id: %w", err)
	}
	c.Worker.ID = "worker-" + id.String()
	return nil
}

func setDefaults(v *viper.Viper) {
	// Database. The empty url default registers the key so AutomaticEnv
	// picks up DATABASE_URL during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scheduleworker")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "scheduleworker")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "schedule_ingest")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")

	// Worker / lease / lifecycle (§4.8, §6). The empty id default registers
	// the key so AutomaticEnv picks up WORKER_ID during Unmarshal.
	v.SetDefault("worker.id", "")
	v.SetDefault("worker.lease_timeout_seconds", 300)
	v.SetDefault("worker.lease_heartbeat_seconds", 10)
	v.SetDefault("worker.session_idle_timeout_seconds", 25)
	v.SetDefault("worker.poll_seconds", 5)
	v.SetDefault("worker.summary_threshold", 3)
	v.SetDefault("worker.time_tolerance_minutes", 5)
	v.SetDefault("worker.ingest_pool_size", 8)
	v.SetDefault("worker.blob_store_root", ".")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// State name aliasing (§6)
	v.SetDefault("states.pending", "pending")
	v.SetDefault("states.processing", "processing")
	v.SetDefault("states.done", "done")
	v.SetDefault("states.failed", "failed")

	// §6 names these PENDING_STATE/PROCESSING_STATE/DONE_STATE/FAILED_STATE
	// rather than the STATES_* form SetEnvKeyReplacer would derive, so bind
	// them explicitly alongside the automatic nested-key mapping.
	_ = v.BindEnv("states.pending", "PENDING_STATE")
	_ = v.BindEnv("states.processing", "PROCESSING_STATE")
	_ = v.BindEnv("states.done", "DONE_STATE")
	_ = v.BindEnv("states.failed", "FAILED_STATE")

	// The lease/lifecycle knobs and the schema are also read from their
	// unprefixed names; the WORKER_*/DATABASE_* form derived by AutomaticEnv
	// takes precedence when both are set.
	_ = v.BindEnv("worker.lease_timeout_seconds", "LEASE_TIMEOUT_SECONDS")
	_ = v.BindEnv("worker.lease_heartbeat_seconds", "LEASE_HEARTBEAT_SECONDS")
	_ = v.BindEnv("worker.session_idle_timeout_seconds", "SESSION_IDLE_TIMEOUT_SECONDS")
	_ = v.BindEnv("worker.summary_threshold", "SUMMARY_THRESHOLD")
	_ = v.BindEnv("database.schema", "DB_SCHEMA")
}
