// Package entropy fetches unpredictable public randomness for draws. Sources
// are tried in order and the first usable block hash wins; when every public
// source fails, a local random value is returned and flagged as degraded.
package entropy

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Source names recorded on draws.
const (
	SourceExplorer    = "explorer"
	SourceRPC         = "rpc"
	SourceLatestBlock = "latest_block"
	SourceLocal       = "local"
)

// Result is a hash usable as draw entropy.
type Result struct {
	Hash        string
	Source      string
	BlockNumber uint64
	// Degraded is set when no public source answered and Hash came from the
	// local CSPRNG. Such draws cannot be independently verified.
	Degraded bool
}

// Rung is one public entropy source.
type Rung interface {
	Name() string
	Fetch(ctx context.Context) (Result, error)
}

// Ladder tries each rung under its own timeout.
type Ladder struct {
	rungs   []Rung
	timeout time.Duration
	logger  *slog.Logger
}

// NewLadder creates a Ladder. timeout bounds every individual rung attempt.
func NewLadder(logger *slog.Logger, timeout time.Duration, rungs ...Rung) *Ladder {
	return &Ladder{
		rungs:   rungs,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "entropy")),
	}
}

// FetchExternalHash returns the first hash any rung produces, falling back to
// local randomness. It never fails.
func (l *Ladder) FetchExternalHash(ctx context.Context) Result {
	for _, r := range l.rungs {
		res, err := l.attempt(ctx, r)
		if err == nil {
			l.logger.DebugContext(ctx, "entropy fetched",
				slog.String("source", res.Source),
				slog.String("hash", res.Hash),
				slog.Uint64("block", res.BlockNumber),
			)
			return res
		}
		l.logger.WarnContext(ctx, "entropy source failed",
			slog.String("source", r.Name()),
			slog.String("error", err.Error()),
		)
	}

	res := localResult()
	l.logger.WarnContext(ctx, "all public entropy sources failed, using local randomness; draw is not externally verifiable",
		slog.String("hash", res.Hash),
	)
	return res
}

func (l *Ladder) attempt(ctx context.Context, r Rung) (Result, error) {
	actx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	res, err := r.Fetch(actx)
	if err != nil {
		return Result{}, err
	}
	if res.Hash == "" {
		return Result{}, fmt.Errorf("entropy: %s: empty hash", r.Name())
	}
	return res, nil
}

func localResult() Result {
	var buf [common.HashLength]byte
	// crypto/rand.Read does not fail on supported platforms.
	_, _ = rand.Read(buf[:])
	return Result{
		Hash:     common.BytesToHash(buf[:]).Hex(),
		Source:   SourceLocal,
		Degraded: true,
	}
}
