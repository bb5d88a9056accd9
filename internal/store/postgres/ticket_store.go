package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// TicketStore implements domain.TicketStore using PostgreSQL.
type TicketStore struct {
	pool *pgxpool.Pool
}

// NewTicketStore creates a new TicketStore backed by the given pool.
func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool}
}

// ListByCompetition returns every ticket of a competition ordered by number.
func (s *TicketStore) ListByCompetition(ctx context.Context, competitionID string) ([]domain.Ticket, error) {
	const query = `SELECT id, competition_id, ticket_number, user_id, is_winner, purchased_at
		FROM tickets WHERE competition_id = $1 ORDER BY ticket_number ASC`
	rows, err := s.pool.Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tickets for %s: %w", competitionID, err)
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.CompetitionID, &t.TicketNumber, &t.UserID, &t.IsWinner, &t.PurchasedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan ticket: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tickets rows: %w", err)
	}
	return out, nil
}

var _ domain.TicketStore = (*TicketStore)(nil)
