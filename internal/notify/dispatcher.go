package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dispatcher appends participant notifications and winner email logs.
type Dispatcher struct {
	notifications domain.NotificationStore
	emails        domain.EmailLogStore
	siteURL       string
	concurrency   int
	now           func() time.Time
	newID         func() string
	logger        *slog.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source used for CreatedAt and Timestamp.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() string) DispatcherOption {
	return func(d *Dispatcher) { d.newID = newID }
}

// WithConcurrency bounds the ending-soon fan-out.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithSiteURL sets the base URL linked from winner emails.
func WithSiteURL(u string) DispatcherOption {
	return func(d *Dispatcher) { d.siteURL = strings.TrimRight(u, "/") }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(notifications domain.NotificationStore, emails domain.EmailLogStore, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifications: notifications,
		emails:        emails,
		concurrency:   16,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		logger:        logger.With(slog.String("component", "dispatcher")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NotifyWinner records the win notification and the winner email. Both
// writes are attempted; their errors are joined.
func (d *Dispatcher) NotifyWinner(ctx context.Context, c domain.Competition, winner domain.User, o domain.DrawOutcome) error {
	var errs []error

	note := domain.Notification{
		ID:            d.newID(),
		UserID:        winner.ID,
		Title:         "Congratulations! You won!",
		Message:       fmt.Sprintf("Your ticket #%d won %s.", o.WinningTicket, c.Title),
		Type:          domain.NotificationWin,
		CompetitionID: c.ID,
		ImageURL:      c.ImageURL,
		Data: map[string]any{
			"ticketNumber": o.WinningTicket,
			"prize":        c.Prize,
			"prizeValue":   c.PrizeValue,
		},
		CreatedAt: d.now(),
	}
	if err := d.notifications.Create(ctx, note); err != nil {
		errs = append(errs, fmt.Errorf("notify: win notification for %s: %w", c.ID, err))
	}

	if winner.Email == "" {
		d.logger.WarnContext(ctx, "winner has no email address",
			slog.String("competition_id", c.ID),
			slog.String("user_id", winner.ID),
		)
		return errors.Join(errs...)
	}

	content, err := renderWinnerEmail(winnerEmailData{
		Username:      displayName(winner),
		Title:         c.Title,
		Prize:         c.Prize,
		PrizeValue:    c.PrizeValue,
		WinningTicket: o.WinningTicket,
		ImageURL:      c.ImageURL,
		ClaimURL:      fmt.Sprintf("%s/competitions/%s", d.siteURL, c.ID),
		Seed:          o.Seed,
		BlockHash:     o.BlockHash,
	})
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	entry := domain.EmailLog{
		ID:        d.newID(),
		To:        winner.Email,
		Subject:   winnerSubject(c),
		Content:   content,
		Sent:      false,
		Timestamp: d.now(),
	}
	if err := d.emails.Create(ctx, entry); err != nil {
		errs = append(errs, fmt.Errorf("notify: winner email for %s: %w", c.ID, err))
	}
	return errors.Join(errs...)
}

// NotifyEndingSoon creates one ending_soon notification per user. Writes run
// concurrently up to the configured limit; each failure is captured and the
// rest proceed. It returns how many notifications were created.
func (d *Dispatcher) NotifyEndingSoon(ctx context.Context, c domain.Competition, userIDs []string, hoursLeft int) (int, error) {
	var (
		mu      sync.Mutex
		created int
		errs    []error
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, uid := range userIDs {
		g.Go(func() error {
			note := domain.Notification{
				ID:            d.newID(),
				UserID:        uid,
				Title:         "Competition ending soon",
				Message:       endingSoonMessage(c.Title, hoursLeft),
				Type:          domain.NotificationEndingSoon,
				CompetitionID: c.ID,
				ImageURL:      c.ImageURL,
				Data:          map[string]any{"hoursLeft": hoursLeft},
				CreatedAt:     d.now(),
			}
			err := d.notifications.Create(ctx, note)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("user %s: %w", uid, err))
				return nil
			}
			created++
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return created, fmt.Errorf("notify: ending soon for %s: %d of %d failed: %w",
			c.ID, len(errs), len(userIDs), errors.Join(errs...))
	}
	return created, nil
}

func endingSoonMessage(title string, hours int) string {
	switch {
	case hours < 1:
		return fmt.Sprintf("%s ends in less than an hour. Good luck!", title)
	case hours == 1:
		return fmt.Sprintf("%s ends in 1 hour. Good luck!", title)
	default:
		return fmt.Sprintf("%s ends in %d hours. Good luck!", title, hours)
	}
}

func displayName(u domain.User) string {
	if u.Username != "" {
		return u.Username
	}
	return "there"
}
