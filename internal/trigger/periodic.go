// Package trigger invokes the resolution engine on a schedule and on demand
// from an authorised admin.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/engine"
)

// Runner is the part of the engine the triggers drive.
type Runner interface {
	RunDue(ctx context.Context) (engine.Report, error)
	Resolve(ctx context.Context, id string) (engine.Outcome, error)
}

// RunStatus describes the most recent periodic run.
type RunStatus struct {
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Report     engine.Report `json:"report"`
	Error      string        `json:"error,omitempty"`
	TotalRuns  int           `json:"totalRuns"`
	NextRunDue time.Time     `json:"nextRunDue"`
}

// Periodic runs the engine on a fixed interval.
type Periodic struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger

	mu   sync.Mutex
	last RunStatus
}

// NewPeriodic creates a Periodic trigger.
func NewPeriodic(runner Runner, interval time.Duration, runOnStart bool, logger *slog.Logger) *Periodic {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Periodic{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With(slog.String("component", "scheduler")),
	}
}

// Run ticks until ctx is cancelled. A failed tick is logged and the loop
// carries on.
func (p *Periodic) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "scheduler started", slog.Duration("interval", p.interval))
	if p.runOnStart {
		p.Tick(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one run and records its status.
func (p *Periodic) Tick(ctx context.Context) RunStatus {
	start := time.Now().UTC()
	rep, err := p.runner.RunDue(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = RunStatus{
		StartedAt:  start,
		Duration:   time.Since(start),
		Report:     rep,
		TotalRuns:  p.last.TotalRuns + 1,
		NextRunDue: start.Add(p.interval),
	}
	if err != nil {
		p.last.Error = err.Error()
		p.logger.ErrorContext(ctx, "scheduled run failed", slog.String("error", err.Error()))
	} else {
		p.logger.InfoContext(ctx, "scheduled run complete", slog.Int("processed", rep.Processed()))
	}
	return p.last
}

// LastRun returns the status of the most recent tick.
func (p *Periodic) LastRun() RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
