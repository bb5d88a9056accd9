package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// MarkResult is what MarkEndingSoon did.
type MarkResult struct {
	// Marked is false when the competition was no longer active or had
	// already been marked by someone else.
	Marked   bool
	Notified int
}

// MarkEndingSoon moves an active competition to ending and notifies each
// distinct participant once.
func (e *Engine) MarkEndingSoon(ctx context.Context, id string) (MarkResult, error) {
	if id == "" {
		return MarkResult{}, fmt.Errorf("engine: mark ending soon: empty competition id: %w", domain.ErrInvalidArgument)
	}
	logger := e.logger.With(slog.String("competition_id", id))

	c, err := e.competitions.GetByID(ctx, id)
	if err != nil {
		return MarkResult{}, fmt.Errorf("engine: mark ending soon %s: %w", id, err)
	}
	if c.Status != domain.StatusActive || c.MarkedEndingSoon {
		return MarkResult{}, nil
	}

	now := e.now()
	if err := e.competitions.MarkEndingSoon(ctx, id, now); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return MarkResult{}, nil
		}
		return MarkResult{}, fmt.Errorf("engine: mark ending soon %s: %w", id, err)
	}

	tickets, err := e.tickets.ListByCompetition(ctx, id)
	if err != nil {
		// The mark is committed; participants just miss the reminder.
		return MarkResult{Marked: true}, fmt.Errorf("engine: mark ending soon %s: list tickets: %w", id, err)
	}
	participants := domain.DistinctUserIDs(tickets)
	hours := hoursUntil(c.EndsAt, now)

	created, err := e.notifier.NotifyEndingSoon(ctx, c, participants, hours)
	if err != nil {
		// Partial delivery is acceptable; the mark stays.
		logger.WarnContext(ctx, "some ending soon notifications failed",
			slog.Int("created", created),
			slog.Int("participants", len(participants)),
			slog.String("error", err.Error()),
		)
	}

	logger.InfoContext(ctx, "competition marked ending soon",
		slog.Int("participants", len(participants)),
		slog.Int("hours_left", hours),
	)
	e.publish(ctx, domain.DrawEvent{
		Type:          domain.EventCompetitionEndingSoon,
		CompetitionID: c.ID,
		Title:         c.Title,
		Participants:  len(participants),
		At:            now,
	})
	return MarkResult{Marked: true, Notified: created}, nil
}
