package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "k"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 24*time.Hour, cfg.Engine.EndingSoonWindow.Duration)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval.Duration)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Store.Driver = "sqlite"
	cfg.Engine.Concurrency = 0
	cfg.Entropy.AttemptTimeout.Duration = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, `store: unknown driver "sqlite"`)
	assert.Contains(t, msg, "engine: concurrency must be >= 1")
	assert.Contains(t, msg, "entropy: attempt_timeout must be > 0")
}

func TestValidateMongoRequiresURI(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Driver = "mongo"
	cfg.Mongo.URI = ""
	require.ErrorContains(t, cfg.Validate(), "mongo: uri must not be empty")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prizedraw.toml")
	body := `
mode = "once"

[store]
driver = "memory"

[engine]
ending_soon_window = "12h"
concurrency = 8
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PRIZEDRAW_ENGINE_CONCURRENCY", "2")
	t.Setenv("PRIZEDRAW_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "once", cfg.Mode)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Engine.EndingSoonWindow.Duration)
	assert.Equal(t, 2, cfg.Engine.Concurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// untouched sections keep defaults
	assert.Equal(t, 5*time.Second, cfg.Entropy.AttemptTimeout.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Mongo.URI = "mongodb://user:pass@db:27017"
	cfg.Entropy.RPCURL = "https://mainnet.example/v3/secret"
	cfg.Server.APIKey = "k"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "mongodb://***", out.Mongo.URI)
	assert.Equal(t, "https://***", out.Entropy.RPCURL)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.Notify.TelegramToken)

	out.Notify.Events[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Notify.Events[0])
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}

func TestValidateSigningKeyFileNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "k"
	cfg.Receipts.SigningKeyFile = "/etc/prizedraw/signing.json"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key_password")

	cfg.Receipts.SigningKeyPassword = "pw"
	assert.NoError(t, cfg.Validate())

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Receipts.SigningKeyPassword)
}

func TestValidateServingModesRequireAPIKey(t *testing.T) {
	for _, mode := range []string{"server", "full"} {
		cfg := Defaults()
		cfg.Mode = mode
		require.ErrorContains(t, cfg.Validate(), "server: api_key must be set", mode)

		cfg.Server.APIKey = "  "
		require.ErrorContains(t, cfg.Validate(), "server: api_key must be set", mode)
	}

	for _, mode := range []string{"scheduler", "once"} {
		cfg := Defaults()
		cfg.Mode = mode
		assert.NoError(t, cfg.Validate(), mode)
	}
}
