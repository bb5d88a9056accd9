package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// NotificationStore implements domain.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *pgxpool.Pool
}

// NewNotificationStore creates a new NotificationStore backed by the given pool.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Create inserts a notification. The data map is stored as JSONB.
func (s *NotificationStore) Create(ctx context.Context, n domain.Notification) error {
	var data []byte
	if n.Data != nil {
		var err error
		if data, err = json.Marshal(n.Data); err != nil {
			return fmt.Errorf("postgres: marshal notification data: %w", err)
		}
	}

	const query = `INSERT INTO notifications
		(id, user_id, title, message, type, competition_id, image_url, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.CompetitionID,
		n.ImageURL, data, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create notification for %s: %w", n.UserID, err)
	}
	return nil
}

// ListByUser returns a user's notifications newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Notification, error) {
	query := `SELECT id, user_id, title, message, type, COALESCE(competition_id, ''),
		image_url, data, read, created_at
		FROM notifications WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	query += " ORDER BY created_at DESC, id DESC"
	query, args = paginate(query, args, argIdx, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.CompetitionID,
			&n.ImageURL, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan notification: %w", err)
		}
		n.Type = domain.NotificationType(typ)
		if data != nil {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal notification data: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list notifications rows: %w", err)
	}
	return out, nil
}

// EmailLogStore implements domain.EmailLogStore using PostgreSQL.
type EmailLogStore struct {
	pool *pgxpool.Pool
}

// NewEmailLogStore creates a new EmailLogStore backed by the given pool.
func NewEmailLogStore(pool *pgxpool.Pool) *EmailLogStore {
	return &EmailLogStore{pool: pool}
}

// Create inserts an email log row.
func (s *EmailLogStore) Create(ctx context.Context, e domain.EmailLog) error {
	const query = `INSERT INTO email_logs (id, to_address, subject, html, text, sent, timestamp, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`
	_, err := s.pool.Exec(ctx, query,
		e.ID, e.To, e.Subject, e.Content.HTML, e.Content.Text, e.Sent, e.Timestamp, e.Error)
	if err != nil {
		return fmt.Errorf("postgres: create email log %s: %w", e.ID, err)
	}
	return nil
}

var (
	_ domain.NotificationStore = (*NotificationStore)(nil)
	_ domain.EmailLogStore     = (*EmailLogStore)(nil)
)
