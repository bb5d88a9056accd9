package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/prizedraw/internal/config"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Store.Driver = "memory"
	cfg.Mode = "once"
	return &cfg
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWireMemory(t *testing.T) {
	deps, cleanup, err := Wire(context.Background(), memoryConfig(), discard())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Stores.Competitions)
	assert.NotNil(t, deps.Receipts)
	assert.NotNil(t, deps.Bus)
	assert.NotNil(t, deps.Events)
	assert.Nil(t, deps.Locks)
	assert.Nil(t, deps.RateLimiter)
	assert.Empty(t, deps.Checks)
}

func TestWireRejectsBadSigningKey(t *testing.T) {
	cfg := memoryConfig()
	cfg.Receipts.SigningKey = "zz"
	_, _, err := Wire(context.Background(), cfg, discard())
	assert.Error(t, err)
}

func TestRunOnceWithEmptyStore(t *testing.T) {
	a := New(memoryConfig(), discard())
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))
}

func TestRunUnknownMode(t *testing.T) {
	cfg := memoryConfig()
	cfg.Mode = "trade"
	a := New(cfg, discard())
	defer a.Close()
	assert.Error(t, a.Run(context.Background()))
}
