// Package engine resolves competitions. It scans for competitions past their
// deadline or about to reach it, draws winners, cancels unsold draws and fans
// out participant notifications. Every state change is a conditional update
// against the status the engine last read, so overlapping triggers cannot
// draw the same competition twice.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/draw"
	"github.com/alanyoungcy/prizedraw/internal/entropy"
)

// EntropySource yields the external hash mixed into each draw.
type EntropySource interface {
	FetchExternalHash(ctx context.Context) entropy.Result
}

// Notifier records participant-facing notifications.
type Notifier interface {
	NotifyWinner(ctx context.Context, c domain.Competition, winner domain.User, o domain.DrawOutcome) error
	NotifyEndingSoon(ctx context.Context, c domain.Competition, userIDs []string, hoursLeft int) (int, error)
}

// Alerter raises operator alerts.
type Alerter interface {
	Alert(ctx context.Context, event, title, message string) error
}

// EventPublisher broadcasts draw events to live subscribers.
type EventPublisher interface {
	PublishDraw(ctx context.Context, ev domain.DrawEvent) error
}

// SelectFunc maps a seed, block hash and ticket count to a ticket number.
type SelectFunc func(seed, blockHash string, totalTickets int) (int, error)

// Deps are the collaborators an Engine needs. Locks, Receipts, Events and
// Alerts are optional.
type Deps struct {
	Stores   domain.Stores
	Entropy  EntropySource
	Notifier Notifier
	Locks    domain.LockManager
	Receipts domain.ReceiptStore
	Events   EventPublisher
	Alerts   Alerter
}

// Engine drives the competition state machine.
type Engine struct {
	competitions domain.CompetitionStore
	tickets      domain.TicketStore
	users        domain.UserStore
	audit        domain.AuditStore
	entropy      EntropySource
	notifier     Notifier
	locks        domain.LockManager
	receipts     domain.ReceiptStore
	events       EventPublisher
	alerts       Alerter

	selectWinner SelectFunc
	newSeed      func() (string, error)
	now          func() time.Time

	concurrency      int
	endingSoonWindow time.Duration
	lockTTL          time.Duration

	logger *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the engine time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeedFunc overrides local seed generation.
func WithSeedFunc(fn func() (string, error)) Option {
	return func(e *Engine) { e.newSeed = fn }
}

// WithSelector overrides the winner selection function.
func WithSelector(fn SelectFunc) Option {
	return func(e *Engine) { e.selectWinner = fn }
}

// WithConcurrency bounds how many competitions a batch processes at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithEndingSoonWindow sets how far ahead of the deadline participants are
// told a competition is ending.
func WithEndingSoonWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.endingSoonWindow = d
		}
	}
}

// WithLockTTL sets the lease duration used when Deps.Locks is set.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTTL = d
		}
	}
}

// New creates an Engine.
func New(deps Deps, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		competitions:     deps.Stores.Competitions,
		tickets:          deps.Stores.Tickets,
		users:            deps.Stores.Users,
		audit:            deps.Stores.Audit,
		entropy:          deps.Entropy,
		notifier:         deps.Notifier,
		locks:            deps.Locks,
		receipts:         deps.Receipts,
		events:           deps.Events,
		alerts:           deps.Alerts,
		selectWinner:     draw.SelectWinner,
		newSeed:          draw.NewSeed,
		now:              func() time.Time { return time.Now().UTC() },
		concurrency:      4,
		endingSoonWindow: 24 * time.Hour,
		lockTTL:          2 * time.Minute,
		logger:           logger.With(slog.String("component", "engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) alert(ctx context.Context, event, title, message string) {
	if e.alerts == nil {
		return
	}
	if err := e.alerts.Alert(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "alert failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) auditLog(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) publish(ctx context.Context, ev domain.DrawEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishDraw(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "publish draw event failed",
			slog.String("type", ev.Type),
			slog.String("competition_id", ev.CompetitionID),
			slog.String("error", err.Error()),
		)
	}
}
