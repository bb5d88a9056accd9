// Package memstore is an in-process implementation of every domain store. It
// backs the "memory" store driver and serves as the fake in package tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// Store holds all records behind one mutex so multi-record updates such as
// Complete are atomic.
type Store struct {
	mu            sync.Mutex
	competitions  map[string]domain.Competition
	tickets       map[string][]domain.Ticket
	users         map[string]domain.User
	notifications []domain.Notification
	emailLogs     []domain.EmailLog
	audit         []domain.AuditEntry
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		competitions: make(map[string]domain.Competition),
		tickets:      make(map[string][]domain.Ticket),
		users:        make(map[string]domain.User),
	}
}

// Stores exposes the Store through the domain interfaces.
func (s *Store) Stores() domain.Stores {
	return domain.Stores{
		Competitions:  competitionStore{s},
		Tickets:       ticketStore{s},
		Users:         userStore{s},
		Notifications: notificationStore{s},
		EmailLogs:     emailLogStore{s},
		Audit:         auditStore{s},
	}
}

// PutCompetition inserts or replaces a competition.
func (s *Store) PutCompetition(c domain.Competition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitions[c.ID] = c
}

// PutTickets appends tickets.
func (s *Store) PutTickets(tickets ...domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		s.tickets[t.CompetitionID] = append(s.tickets[t.CompetitionID], t)
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Competition returns a snapshot of a competition for assertions.
func (s *Store) Competition(id string) (domain.Competition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	return c, ok
}

// Tickets returns a copy of a competition's tickets.
func (s *Store) Tickets(competitionID string) []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Ticket(nil), s.tickets[competitionID]...)
}

// Notifications returns a copy of every notification created.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.notifications...)
}

// EmailLogs returns a copy of every email log created.
func (s *Store) EmailLogs() []domain.EmailLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EmailLog(nil), s.emailLogs...)
}

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

type competitionStore struct{ s *Store }

func (c competitionStore) GetByID(_ context.Context, id string) (domain.Competition, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	comp, ok := c.s.competitions[id]
	if !ok {
		return domain.Competition{}, fmt.Errorf("memstore: competition %s: %w", id, domain.ErrNotFound)
	}
	if err := comp.Validate(); err != nil {
		return domain.Competition{}, err
	}
	return comp, nil
}

func (c competitionStore) ListDue(_ context.Context, now time.Time) ([]domain.Competition, error) {
	return c.filter(func(comp domain.Competition) bool {
		return comp.Status.Resolvable() && !comp.EndsAt.After(now)
	}), nil
}

func (c competitionStore) ListEndingSoon(_ context.Context, now, until time.Time) ([]domain.Competition, error) {
	return c.filter(func(comp domain.Competition) bool {
		return comp.Status == domain.StatusActive && !comp.MarkedEndingSoon &&
			comp.EndsAt.After(now) && !comp.EndsAt.After(until)
	}), nil
}

func (c competitionStore) filter(keep func(domain.Competition) bool) []domain.Competition {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []domain.Competition
	for _, comp := range c.s.competitions {
		if keep(comp) {
			out = append(out, comp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return out
}

// transition applies fn to the competition when its stored status equals
// expected. Caller holds s.mu.
func (c competitionStore) transition(id string, expected domain.CompetitionStatus, fn func(*domain.Competition) error) error {
	comp, ok := c.s.competitions[id]
	if !ok {
		return fmt.Errorf("memstore: competition %s: %w", id, domain.ErrNotFound)
	}
	if comp.Status != expected {
		return fmt.Errorf("memstore: competition %s is %s, expected %s: %w", id, comp.Status, expected, domain.ErrStatusConflict)
	}
	if err := fn(&comp); err != nil {
		return err
	}
	c.s.competitions[id] = comp
	return nil
}

func (c competitionStore) Complete(_ context.Context, id string, expected domain.CompetitionStatus, o domain.DrawOutcome) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	tickets := c.s.tickets[id]
	idx := -1
	for i := range tickets {
		if tickets[i].ID == o.WinningTicketID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("memstore: ticket %s in competition %s: %w", o.WinningTicketID, id, domain.ErrNotFound)
	}

	err := c.transition(id, expected, func(comp *domain.Competition) error {
		winner := o.Winner
		ticket := o.WinningTicket
		seed := o.Seed
		hash := o.BlockHash
		at := o.CompletedAt
		comp.Status = domain.StatusComplete
		comp.Winner = &winner
		comp.WinningTicket = &ticket
		comp.Seed = &seed
		comp.BlockHash = &hash
		comp.EntropySource = o.EntropySource
		comp.CompletedAt = &at
		comp.UpdatedAt = at
		return nil
	})
	if err != nil {
		return err
	}
	tickets[idx].IsWinner = true
	return nil
}

func (c competitionStore) Cancel(_ context.Context, id string, expected domain.CompetitionStatus, at time.Time) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.transition(id, expected, func(comp *domain.Competition) error {
		comp.Status = domain.StatusCancelled
		comp.UpdatedAt = at
		return nil
	})
}

func (c competitionStore) MarkEndingSoon(_ context.Context, id string, at time.Time) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.transition(id, domain.StatusActive, func(comp *domain.Competition) error {
		if comp.MarkedEndingSoon {
			return fmt.Errorf("memstore: competition %s already marked: %w", id, domain.ErrStatusConflict)
		}
		comp.Status = domain.StatusEnding
		comp.MarkedEndingSoon = true
		comp.UpdatedAt = at
		return nil
	})
}

type ticketStore struct{ s *Store }

func (t ticketStore) ListByCompetition(_ context.Context, competitionID string) ([]domain.Ticket, error) {
	out := t.s.Tickets(competitionID)
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out, nil
}

type userStore struct{ s *Store }

func (u userStore) GetByID(_ context.Context, id string) (domain.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("memstore: user %s: %w", id, domain.ErrNotFound)
	}
	return user, nil
}

type notificationStore struct{ s *Store }

func (n notificationStore) Create(_ context.Context, note domain.Notification) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.s.notifications = append(n.s.notifications, note)
	return nil
}

func (n notificationStore) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var out []domain.Notification
	for i := len(n.s.notifications) - 1; i >= 0; i-- {
		note := n.s.notifications[i]
		if note.UserID != userID {
			continue
		}
		if opts.Since != nil && note.CreatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, note)
	}
	return paginate(out, opts), nil
}

type emailLogStore struct{ s *Store }

func (e emailLogStore) Create(_ context.Context, log domain.EmailLog) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.emailLogs = append(e.s.emailLogs, log)
	return nil
}

type auditStore struct{ s *Store }

func (a auditStore) Log(_ context.Context, event string, detail map[string]any) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.audit = append(a.s.audit, domain.AuditEntry{
		ID:        int64(len(a.s.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (a auditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(a.s.audit) - 1; i >= 0; i-- {
		e := a.s.audit[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, e)
	}
	return paginate(out, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
