package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/draw"
	"github.com/alanyoungcy/prizedraw/internal/entropy"
	"github.com/alanyoungcy/prizedraw/internal/notify"
)

// Outcome is what Resolve did to a competition.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeSkipped means the competition was already terminal or another
	// resolver got there first.
	OutcomeSkipped Outcome = "skipped"
)

func lockKey(id string) string { return "draw:" + id }

// Resolve draws a winner for one competition, or cancels it when nothing was
// sold. Calling Resolve on a terminal competition is a no-op.
func (e *Engine) Resolve(ctx context.Context, id string) (Outcome, error) {
	if id == "" {
		return "", fmt.Errorf("engine: resolve: empty competition id: %w", domain.ErrInvalidArgument)
	}
	logger := e.logger.With(slog.String("competition_id", id))

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, lockKey(id), e.lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			logger.InfoContext(ctx, "resolution already in progress elsewhere")
			return OutcomeSkipped, nil
		case err != nil:
			// The conditional update below still prevents a double draw.
			logger.WarnContext(ctx, "draw lock unavailable", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	c, err := e.competitions.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("engine: resolve %s: %w", id, err)
	}
	if c.Status.Terminal() {
		logger.DebugContext(ctx, "competition already resolved", slog.String("status", string(c.Status)))
		return OutcomeSkipped, nil
	}

	if c.TicketsSold <= 0 {
		return e.cancel(ctx, c, "no tickets sold")
	}

	tickets, err := e.tickets.ListByCompetition(ctx, id)
	if err != nil {
		return "", fmt.Errorf("engine: resolve %s: list tickets: %w", id, err)
	}
	if len(tickets) == 0 {
		logger.ErrorContext(ctx, "tickets sold but no ticket records",
			slog.Int("tickets_sold", c.TicketsSold),
		)
		e.alert(ctx, notify.EventDataIntegrity, "Competition cancelled: missing tickets",
			fmt.Sprintf("%s (%s) reports %d tickets sold but has no ticket records.", c.Title, c.ID, c.TicketsSold))
		return e.cancel(ctx, c, "ticket records missing")
	}

	seed, err := e.newSeed()
	if err != nil {
		return "", fmt.Errorf("engine: resolve %s: %w", id, err)
	}
	ent := e.entropy.FetchExternalHash(ctx)
	if ent.Degraded {
		e.alert(ctx, notify.EventEntropyDegraded, "Draw used local randomness",
			fmt.Sprintf("%s (%s) was drawn without public block entropy.", c.Title, c.ID))
	}

	number, err := e.selectWinner(seed, ent.Hash, c.TicketsSold)
	if err != nil {
		return "", fmt.Errorf("engine: resolve %s: %w", id, err)
	}
	ticket, ok := findTicket(tickets, number)
	if !ok {
		logger.ErrorContext(ctx, "winning number has no ticket",
			slog.Int("winning_number", number),
			slog.Int("tickets_sold", c.TicketsSold),
			slog.Int("ticket_records", len(tickets)),
		)
		e.alert(ctx, notify.EventDataIntegrity, "Draw aborted: ticket numbering",
			fmt.Sprintf("%s (%s) drew #%d but no such ticket exists.", c.Title, c.ID, number))
		return "", fmt.Errorf("engine: resolve %s: no ticket numbered %d of %d: %w",
			id, number, c.TicketsSold, domain.ErrDataIntegrity)
	}

	winner, err := e.users.GetByID(ctx, ticket.UserID)
	if err != nil {
		return "", fmt.Errorf("engine: resolve %s: winner %s: %w", id, ticket.UserID, err)
	}

	outcome := domain.DrawOutcome{
		WinningTicketID: ticket.ID,
		WinningTicket:   ticket.TicketNumber,
		Winner: domain.Winner{
			UserID:   winner.ID,
			Username: winner.Username,
			Email:    winner.Email,
		},
		Seed:          seed,
		BlockHash:     ent.Hash,
		EntropySource: ent.Source,
		CompletedAt:   e.now(),
	}
	if err := e.competitions.Complete(ctx, id, c.Status, outcome); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			logger.InfoContext(ctx, "competition resolved concurrently, discarding draw")
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("engine: resolve %s: complete: %w", id, err)
	}

	logger.InfoContext(ctx, "competition completed",
		slog.Int("winning_ticket", outcome.WinningTicket),
		slog.String("winner_id", winner.ID),
		slog.String("entropy_source", ent.Source),
		slog.Bool("degraded", ent.Degraded),
	)
	e.afterComplete(ctx, c, winner, outcome, ent)
	return OutcomeCompleted, nil
}

// afterComplete runs the side effects of a completed draw. None of them can
// undo the state change, so failures are only logged.
func (e *Engine) afterComplete(ctx context.Context, c domain.Competition, winner domain.User, o domain.DrawOutcome, ent entropy.Result) {
	logger := e.logger.With(slog.String("competition_id", c.ID))

	if err := e.notifier.NotifyWinner(ctx, c, winner, o); err != nil {
		logger.ErrorContext(ctx, "winner notification failed", slog.String("error", err.Error()))
	}

	e.auditLog(ctx, "competition_completed", map[string]any{
		"competition_id": c.ID,
		"winning_ticket": o.WinningTicket,
		"winner_id":      winner.ID,
		"seed":           o.Seed,
		"block_hash":     o.BlockHash,
		"entropy_source": ent.Source,
		"degraded":       ent.Degraded,
	})

	if e.receipts != nil {
		receipt := domain.DrawReceipt{
			CompetitionID:  c.ID,
			Seed:           o.Seed,
			SeedCommitment: draw.Commitment(o.Seed),
			BlockHash:      o.BlockHash,
			BlockNumber:    ent.BlockNumber,
			EntropySource:  ent.Source,
			Degraded:       ent.Degraded,
			TicketsSold:    c.TicketsSold,
			WinningTicket:  o.WinningTicket,
			WinnerUserID:   winner.ID,
			CompletedAt:    o.CompletedAt,
		}
		if err := e.receipts.Save(ctx, receipt); err != nil {
			logger.ErrorContext(ctx, "draw receipt upload failed", slog.String("error", err.Error()))
		}
	}

	e.publish(ctx, domain.DrawEvent{
		Type:          domain.EventCompetitionCompleted,
		CompetitionID: c.ID,
		Title:         c.Title,
		WinningTicket: o.WinningTicket,
		WinnerName:    winner.Username,
		At:            o.CompletedAt,
	})
	e.alert(ctx, notify.EventCompetitionCompleted, "Competition drawn",
		fmt.Sprintf("%s: ticket #%d won (%s).", c.Title, o.WinningTicket, winner.Username))
}

func (e *Engine) cancel(ctx context.Context, c domain.Competition, reason string) (Outcome, error) {
	at := e.now()
	if err := e.competitions.Cancel(ctx, c.ID, c.Status, at); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("engine: cancel %s: %w", c.ID, err)
	}
	e.logger.InfoContext(ctx, "competition cancelled",
		slog.String("competition_id", c.ID),
		slog.String("reason", reason),
	)
	e.auditLog(ctx, "competition_cancelled", map[string]any{
		"competition_id": c.ID,
		"reason":         reason,
		"tickets_sold":   c.TicketsSold,
	})
	e.publish(ctx, domain.DrawEvent{
		Type:          domain.EventCompetitionCancelled,
		CompetitionID: c.ID,
		Title:         c.Title,
		At:            at,
	})
	return OutcomeCancelled, nil
}

func findTicket(tickets []domain.Ticket, number int) (domain.Ticket, bool) {
	for _, t := range tickets {
		if t.TicketNumber == number {
			return t, true
		}
	}
	return domain.Ticket{}, false
}

// hoursUntil is floor((end - now) / 1h), never negative.
func hoursUntil(end, now time.Time) int {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Hour)
}
