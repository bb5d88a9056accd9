// Package notify records participant notifications and winner emails, and
// raises operator alerts on chat channels (Telegram, Discord). Participant
// records are append-only rows; delivery is someone else's job.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Operator alert events. Only events listed in notify.events are forwarded.
const (
	EventEntropyDegraded      = "entropy_degraded"
	EventDataIntegrity        = "data_integrity"
	EventBatchFailed          = "batch_failed"
	EventCompetitionCompleted = "competition_completed"
)

// Sender is the interface that each alert channel must implement.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Alerter forwards operator alerts to every configured Sender.
type Alerter struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewAlerter creates an Alerter. If events is empty every event is forwarded.
func NewAlerter(senders []Sender, events []string, logger *slog.Logger) *Alerter {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Alerter{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "alerter")),
	}
}

// Alert sends title and message to all senders when event is enabled. A
// failing sender does not stop delivery to the others.
func (a *Alerter) Alert(ctx context.Context, event, title, message string) error {
	if a == nil || len(a.senders) == 0 {
		return nil
	}
	if len(a.events) > 0 && !a.events[event] {
		a.logger.DebugContext(ctx, "alert filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range a.senders {
		if err := s.Send(ctx, title, message); err != nil {
			a.logger.ErrorContext(ctx, "alert sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
