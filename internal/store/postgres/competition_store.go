package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// CompetitionStore implements domain.CompetitionStore using PostgreSQL.
// Every transition is a conditional UPDATE on the expected status, so a row
// changes state at most once per observed status.
type CompetitionStore struct {
	pool *pgxpool.Pool
}

// NewCompetitionStore creates a new CompetitionStore backed by the given pool.
func NewCompetitionStore(pool *pgxpool.Pool) *CompetitionStore {
	return &CompetitionStore{pool: pool}
}

const competitionCols = `id, title, prize, prize_value, image_url, status, ends_at,
	marked_ending_soon, tickets_sold, winner_user_id, winner_username, winner_email,
	winning_ticket, seed, block_hash, entropy_source, completed_at, created_at, updated_at`

func scanCompetition(row pgx.Row) (domain.Competition, error) {
	var c domain.Competition
	var status string
	var winnerID, winnerName, winnerEmail *string

	err := row.Scan(
		&c.ID, &c.Title, &c.Prize, &c.PrizeValue, &c.ImageURL, &status, &c.EndsAt,
		&c.MarkedEndingSoon, &c.TicketsSold, &winnerID, &winnerName, &winnerEmail,
		&c.WinningTicket, &c.Seed, &c.BlockHash, &c.EntropySource, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Competition{}, err
	}
	c.Status = domain.CompetitionStatus(status)
	if winnerID != nil {
		c.Winner = &domain.Winner{UserID: *winnerID}
		if winnerName != nil {
			c.Winner.Username = *winnerName
		}
		if winnerEmail != nil {
			c.Winner.Email = *winnerEmail
		}
	}
	if err := c.Validate(); err != nil {
		return domain.Competition{}, err
	}
	return c, nil
}

// GetByID returns a single competition.
func (s *CompetitionStore) GetByID(ctx context.Context, id string) (domain.Competition, error) {
	query := `SELECT ` + competitionCols + ` FROM competitions WHERE id = $1`
	c, err := scanCompetition(s.pool.QueryRow(ctx, query, id))
	if isNoRows(err) {
		return domain.Competition{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Competition{}, fmt.Errorf("postgres: get competition %s: %w", id, err)
	}
	return c, nil
}

// ListDue returns active or ending competitions whose deadline has passed.
func (s *CompetitionStore) ListDue(ctx context.Context, now time.Time) ([]domain.Competition, error) {
	query := `SELECT ` + competitionCols + ` FROM competitions
		WHERE status IN ('active', 'ending') AND ends_at <= $1
		ORDER BY ends_at ASC, id ASC`
	return s.list(ctx, "list due competitions", query, now)
}

// ListEndingSoon returns active, unmarked competitions ending in (now, until].
func (s *CompetitionStore) ListEndingSoon(ctx context.Context, now, until time.Time) ([]domain.Competition, error) {
	query := `SELECT ` + competitionCols + ` FROM competitions
		WHERE status = 'active' AND NOT marked_ending_soon
		  AND ends_at > $1 AND ends_at <= $2
		ORDER BY ends_at ASC, id ASC`
	return s.list(ctx, "list ending-soon competitions", query, now, until)
}

func (s *CompetitionStore) list(ctx context.Context, op, query string, args ...any) ([]domain.Competition, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}

// Complete stores the draw outcome and flags the winning ticket in one
// transaction.
func (s *CompetitionStore) Complete(ctx context.Context, id string, expected domain.CompetitionStatus, o domain.DrawOutcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: complete competition %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const update = `UPDATE competitions SET
		status = 'complete', winner_user_id = $3, winner_username = $4, winner_email = $5,
		winning_ticket = $6, seed = $7, block_hash = $8, entropy_source = $9,
		completed_at = $10, updated_at = $10
		WHERE id = $1 AND status = $2`
	tag, err := tx.Exec(ctx, update, id, string(expected),
		o.Winner.UserID, o.Winner.Username, o.Winner.Email,
		o.WinningTicket, o.Seed, o.BlockHash, o.EntropySource, o.CompletedAt)
	if err != nil {
		return fmt.Errorf("postgres: complete competition %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, tx, id)
	}

	const flag = `UPDATE tickets SET is_winner = TRUE WHERE id = $1 AND competition_id = $2`
	tag, err = tx.Exec(ctx, flag, o.WinningTicketID, id)
	if err != nil {
		return fmt.Errorf("postgres: flag winning ticket %s: %w", o.WinningTicketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: flag winning ticket %s: %w", o.WinningTicketID, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: complete competition %s: commit: %w", id, err)
	}
	return nil
}

// Cancel moves the competition to cancelled.
func (s *CompetitionStore) Cancel(ctx context.Context, id string, expected domain.CompetitionStatus, at time.Time) error {
	const query = `UPDATE competitions SET status = 'cancelled', updated_at = $3
		WHERE id = $1 AND status = $2`
	tag, err := s.pool.Exec(ctx, query, id, string(expected), at)
	if err != nil {
		return fmt.Errorf("postgres: cancel competition %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, s.pool, id)
	}
	return nil
}

// MarkEndingSoon moves an active, unmarked competition to ending.
func (s *CompetitionStore) MarkEndingSoon(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE competitions SET status = 'ending', marked_ending_soon = TRUE, updated_at = $2
		WHERE id = $1 AND status = 'active' AND NOT marked_ending_soon`
	tag, err := s.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("postgres: mark competition %s ending: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionMiss(ctx, s.pool, id)
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// transitionMiss distinguishes a missing row from one whose status moved on.
func (s *CompetitionStore) transitionMiss(ctx context.Context, q queryRower, id string) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM competitions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: check competition %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("postgres: competition %s: %w", id, domain.ErrStatusConflict)
}

var _ domain.CompetitionStore = (*CompetitionStore)(nil)

// isNoRows reports whether err is pgx's no-rows sentinel.
func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
