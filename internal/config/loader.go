package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PRIZEDRAW_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRIZEDRAW_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Store ──
	setStr(&cfg.Store.Driver, "PRIZEDRAW_STORE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PRIZEDRAW_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "PRIZEDRAW_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PRIZEDRAW_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PRIZEDRAW_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PRIZEDRAW_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PRIZEDRAW_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PRIZEDRAW_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PRIZEDRAW_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PRIZEDRAW_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PRIZEDRAW_POSTGRES_RUN_MIGRATIONS")

	// ── Mongo ──
	setStr(&cfg.Mongo.URI, "PRIZEDRAW_MONGO_URI")
	setStr(&cfg.Mongo.Database, "PRIZEDRAW_MONGO_DATABASE")
	setDuration(&cfg.Mongo.ConnectTimeout, "PRIZEDRAW_MONGO_CONNECT_TIMEOUT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PRIZEDRAW_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PRIZEDRAW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRIZEDRAW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRIZEDRAW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRIZEDRAW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRIZEDRAW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRIZEDRAW_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PRIZEDRAW_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PRIZEDRAW_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PRIZEDRAW_S3_REGION")
	setStr(&cfg.S3.Bucket, "PRIZEDRAW_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PRIZEDRAW_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PRIZEDRAW_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PRIZEDRAW_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PRIZEDRAW_S3_FORCE_PATH_STYLE")

	// ── Receipts ──
	setStr(&cfg.Receipts.SigningKey, "PRIZEDRAW_RECEIPTS_SIGNING_KEY")
	setStr(&cfg.Receipts.SigningKeyFile, "PRIZEDRAW_RECEIPTS_SIGNING_KEY_FILE")
	setStr(&cfg.Receipts.SigningKeyPassword, "PRIZEDRAW_RECEIPTS_SIGNING_KEY_PASSWORD")

	// ── Entropy ──
	setStr(&cfg.Entropy.ExplorerURL, "PRIZEDRAW_ENTROPY_EXPLORER_URL")
	setStr(&cfg.Entropy.ExplorerAPIKey, "PRIZEDRAW_ENTROPY_EXPLORER_API_KEY")
	setStr(&cfg.Entropy.ExplorerAPIKey, "ETHERSCAN_API_KEY") // compatibility alias
	setStr(&cfg.Entropy.RPCURL, "PRIZEDRAW_ENTROPY_RPC_URL")
	setStr(&cfg.Entropy.LatestBlockURL, "PRIZEDRAW_ENTROPY_LATEST_BLOCK_URL")
	setDuration(&cfg.Entropy.AttemptTimeout, "PRIZEDRAW_ENTROPY_ATTEMPT_TIMEOUT")

	// ── Engine ──
	setInt(&cfg.Engine.Concurrency, "PRIZEDRAW_ENGINE_CONCURRENCY")
	setInt(&cfg.Engine.NotifyConcurrency, "PRIZEDRAW_ENGINE_NOTIFY_CONCURRENCY")
	setDuration(&cfg.Engine.EndingSoonWindow, "PRIZEDRAW_ENGINE_ENDING_SOON_WINDOW")
	setDuration(&cfg.Engine.LockTTL, "PRIZEDRAW_ENGINE_LOCK_TTL")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.Interval, "PRIZEDRAW_SCHEDULER_INTERVAL")
	setBool(&cfg.Scheduler.RunOnStart, "PRIZEDRAW_SCHEDULER_RUN_ON_START")

	// ── Server ──
	setInt(&cfg.Server.Port, "PRIZEDRAW_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PRIZEDRAW_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PRIZEDRAW_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "PRIZEDRAW_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PRIZEDRAW_SERVER_RATE_WINDOW")
	setInt(&cfg.Server.AdminCacheSize, "PRIZEDRAW_SERVER_ADMIN_CACHE_SIZE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PRIZEDRAW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PRIZEDRAW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PRIZEDRAW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PRIZEDRAW_NOTIFY_EVENTS")
	setStr(&cfg.Notify.SiteURL, "PRIZEDRAW_NOTIFY_SITE_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "PRIZEDRAW_MODE")
	setStr(&cfg.LogLevel, "PRIZEDRAW_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
