// Package config defines the top-level configuration for the prize draw
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PRIZEDRAW_* environment variables.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Mongo     MongoConfig     `toml:"mongo"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Receipts  ReceiptsConfig  `toml:"receipts"`
	Entropy   EntropyConfig   `toml:"entropy"`
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// StoreConfig selects the backing document store for competitions, tickets,
// users and the notification sink.
type StoreConfig struct {
	// Driver is one of "postgres", "mongo" or "memory".
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	URI            string   `toml:"uri"`
	Database       string   `toml:"database"`
	ConnectTimeout duration `toml:"connect_timeout"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// disabled the engine runs without the per-competition lease, the event bus
// and the admin rate limiter.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters used for draw
// receipts.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReceiptsConfig holds the optional receipt signing key. SigningKey is a raw
// hex key; SigningKeyFile is an encrypted key file opened with
// SigningKeyPassword. Both empty leaves receipts unsigned.
type ReceiptsConfig struct {
	SigningKey         string `toml:"signing_key"`
	SigningKeyFile     string `toml:"signing_key_file"`
	SigningKeyPassword string `toml:"signing_key_password"`
}

// EntropyConfig holds the endpoints of the external randomness ladder.
type EntropyConfig struct {
	ExplorerURL    string   `toml:"explorer_url"`
	ExplorerAPIKey string   `toml:"explorer_api_key"`
	RPCURL         string   `toml:"rpc_url"`
	LatestBlockURL string   `toml:"latest_block_url"`
	AttemptTimeout duration `toml:"attempt_timeout"`
}

// EngineConfig holds resolution engine parameters.
type EngineConfig struct {
	Concurrency       int      `toml:"concurrency"`
	NotifyConcurrency int      `toml:"notify_concurrency"`
	EndingSoonWindow  duration `toml:"ending_soon_window"`
	LockTTL           duration `toml:"lock_ttl"`
}

// SchedulerConfig holds periodic trigger parameters.
type SchedulerConfig struct {
	Interval   duration `toml:"interval"`
	RunOnStart bool     `toml:"run_on_start"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "1h" or "5s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the number of admin calls allowed per RateWindow per
	// caller. Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	// AdminCacheSize bounds the LRU of admin role lookups.
	AdminCacheSize int `toml:"admin_cache_size"`
}

// NotifyConfig holds operator alert channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// SiteURL is the public site linked from winner emails.
	SiteURL string `toml:"site_url"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Store: StoreConfig{Driver: "postgres"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "prizedraw",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "prizedraw",
			ConnectTimeout: duration{10 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "prizedraw-receipts",
			ForcePathStyle: true,
		},
		Entropy: EntropyConfig{
			ExplorerURL:    "https://api.etherscan.io/api",
			LatestBlockURL: "https://blockchain.info/latestblock",
			AttemptTimeout: duration{5 * time.Second},
		},
		Engine: EngineConfig{
			Concurrency:       4,
			NotifyConcurrency: 16,
			EndingSoonWindow:  duration{24 * time.Hour},
			LockTTL:           duration{2 * time.Minute},
		},
		Scheduler: SchedulerConfig{
			Interval:   duration{time.Hour},
			RunOnStart: true,
		},
		Server: ServerConfig{
			Port:           8080,
			CORSOrigins:    []string{"http://localhost:3000"},
			RateLimit:      30,
			RateWindow:     duration{time.Minute},
			AdminCacheSize: 256,
		},
		Notify: NotifyConfig{
			Events:  []string{"entropy_degraded", "data_integrity", "batch_failed"},
			SiteURL: "http://localhost:3000",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scheduler": true,
	"server":    true,
	"full":      true,
	"once":      true,
}

// validDrivers enumerates the accepted values for StoreConfig.Driver.
var validDrivers = map[string]bool{
	"postgres": true,
	"mongo":    true,
	"memory":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scheduler, server, full, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Store
	driver := strings.ToLower(c.Store.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: postgres, mongo, memory)", c.Store.Driver))
	}
	if driver == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}
	if driver == "mongo" {
		if c.Mongo.URI == "" {
			errs = append(errs, "mongo: uri must not be empty")
		}
		if c.Mongo.Database == "" {
			errs = append(errs, "mongo: database must not be empty")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Receipts
	if c.Receipts.SigningKey == "" && c.Receipts.SigningKeyFile != "" && c.Receipts.SigningKeyPassword == "" {
		errs = append(errs, "receipts: signing_key_password is required with signing_key_file")
	}

	// Entropy
	if c.Entropy.AttemptTimeout.Duration <= 0 {
		errs = append(errs, "entropy: attempt_timeout must be > 0")
	}

	// Engine
	if c.Engine.Concurrency < 1 {
		errs = append(errs, "engine: concurrency must be >= 1")
	}
	if c.Engine.NotifyConcurrency < 1 {
		errs = append(errs, "engine: notify_concurrency must be >= 1")
	}
	if c.Engine.EndingSoonWindow.Duration <= 0 {
		errs = append(errs, "engine: ending_soon_window must be > 0")
	}
	if c.Redis.Enabled && c.Engine.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be > 0 when redis is enabled")
	}

	// Scheduler
	mode := strings.ToLower(c.Mode)
	if (mode == "scheduler" || mode == "full") && c.Scheduler.Interval.Duration <= 0 {
		errs = append(errs, "scheduler: interval must be > 0")
	}

	// Server
	if mode == "server" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		// X-User-ID is only trusted behind the key.
		if strings.TrimSpace(c.Server.APIKey) == "" {
			errs = append(errs, "server: api_key must be set in server and full modes")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
		if c.Server.AdminCacheSize < 1 {
			errs = append(errs, "server: admin_cache_size must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
