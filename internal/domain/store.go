package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// CompetitionStore reads and conditionally mutates competitions. Every
// mutating method takes the status the caller last observed and returns
// ErrStatusConflict when the stored status no longer matches, so two
// concurrent resolutions of the same competition cannot both commit.
type CompetitionStore interface {
	GetByID(ctx context.Context, id string) (Competition, error)
	// ListDue returns competitions in status active or ending whose deadline
	// is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]Competition, error)
	// ListEndingSoon returns active, unmarked competitions whose deadline is
	// in (now, until].
	ListEndingSoon(ctx context.Context, now, until time.Time) ([]Competition, error)
	// Complete moves the competition to complete, stores the draw outcome and
	// flags the winning ticket in one atomic step.
	Complete(ctx context.Context, id string, expected CompetitionStatus, outcome DrawOutcome) error
	Cancel(ctx context.Context, id string, expected CompetitionStatus, at time.Time) error
	// MarkEndingSoon moves an active, unmarked competition to ending and sets
	// MarkedEndingSoon.
	MarkEndingSoon(ctx context.Context, id string, at time.Time) error
}

// TicketStore reads tickets.
type TicketStore interface {
	ListByCompetition(ctx context.Context, competitionID string) ([]Ticket, error)
}

// UserStore reads user accounts.
type UserStore interface {
	GetByID(ctx context.Context, id string) (User, error)
}

// NotificationStore appends in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Notification, error)
}

// EmailLogStore appends email log entries.
type EmailLogStore interface {
	Create(ctx context.Context, e EmailLog) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Stores groups every persistence interface a backend provides.
type Stores struct {
	Competitions  CompetitionStore
	Tickets       TicketStore
	Users         UserStore
	Notifications NotificationStore
	EmailLogs     EmailLogStore
	Audit         AuditStore
}
