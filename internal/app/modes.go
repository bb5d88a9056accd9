package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/prizedraw/internal/authz"
	"github.com/alanyoungcy/prizedraw/internal/engine"
	"github.com/alanyoungcy/prizedraw/internal/server"
	"github.com/alanyoungcy/prizedraw/internal/server/handler"
	"github.com/alanyoungcy/prizedraw/internal/server/ws"
	"github.com/alanyoungcy/prizedraw/internal/trigger"
)

// adminRoleTTL bounds how stale a cached admin answer may be.
const adminRoleTTL = time.Minute

// newEngine builds the resolution engine from the wired dependencies.
func (a *App) newEngine(deps *Dependencies) *engine.Engine {
	return engine.New(engine.Deps{
		Stores:   deps.Stores,
		Entropy:  deps.Entropy,
		Notifier: deps.Notifier,
		Locks:    deps.Locks,
		Receipts: deps.Receipts,
		Events:   deps.Events,
		Alerts:   deps.Alerter,
	}, a.logger,
		engine.WithConcurrency(a.cfg.Engine.Concurrency),
		engine.WithEndingSoonWindow(a.cfg.Engine.EndingSoonWindow.Duration),
		engine.WithLockTTL(a.cfg.Engine.LockTTL.Duration),
	)
}

// OnceMode runs a single batch and returns. It is meant for cron-style
// deployments where an external scheduler owns the cadence.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	report, err := a.newEngine(deps).RunDue(ctx)
	if err != nil {
		return fmt.Errorf("once mode: %w", err)
	}
	a.logger.InfoContext(ctx, "once mode finished",
		slog.Int("processed", report.Processed()),
		slog.Int("completed", report.Completed),
		slog.Int("cancelled", report.Cancelled),
		slog.Int("marked", report.Marked),
		slog.Int("failed", report.Failed),
		slog.Int("notify_failed", report.NotifyFailed),
	)
	return nil
}

// SchedulerMode runs the periodic trigger without the HTTP server.
func (a *App) SchedulerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scheduler mode")

	g, ctx := errgroup.WithContext(ctx)
	periodic := trigger.NewPeriodic(a.newEngine(deps), a.cfg.Scheduler.Interval.Duration,
		a.cfg.Scheduler.RunOnStart, a.logger)
	g.Go(func() error {
		return periodic.Run(ctx)
	})
	return g.Wait()
}

// ServerMode serves the admin trigger, read endpoints and live feed without
// the periodic trigger.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startHTTPServer(ctx, g, deps, a.newEngine(deps), nil); err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	return g.Wait()
}

// FullMode runs the periodic trigger and the HTTP server over one engine.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	eng := a.newEngine(deps)

	periodic := trigger.NewPeriodic(eng, a.cfg.Scheduler.Interval.Duration,
		a.cfg.Scheduler.RunOnStart, a.logger)
	g.Go(func() error {
		return periodic.Run(ctx)
	})

	if err := a.startHTTPServer(ctx, g, deps, eng, periodic); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	return g.Wait()
}

// startHTTPServer adds the HTTP server, its graceful shutdown and the
// websocket hub to g. periodic may be nil when the scheduler is not running.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	runner trigger.Runner,
	periodic *trigger.Periodic,
) error {
	admins, err := authz.NewAdminChecker(deps.Stores.Users, a.cfg.Server.AdminCacheSize, adminRoleTTL)
	if err != nil {
		return err
	}

	var status handler.LastRunner
	if periodic != nil {
		status = periodic
	}

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(deps.Checks, a.logger),
		Status:       handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), status),
		Resolve:      handler.NewResolveHandler(trigger.NewOnDemand(runner, admins, a.logger), a.logger),
		Competitions: handler.NewCompetitionHandler(deps.Stores.Competitions, deps.Receipts, admins, a.logger),
	}

	hub := ws.NewHub(deps.Bus, deps.Events, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return nil
}
