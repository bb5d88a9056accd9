package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newTestDispatcher(s *memstore.Store, opts ...DispatcherOption) *Dispatcher {
	st := s.Stores()
	base := []DispatcherOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
		WithSiteURL("https://draws.example/"),
	}
	return NewDispatcher(st.Notifications, st.EmailLogs, discard(), append(base, opts...)...)
}

var comp = domain.Competition{
	ID:         "c1",
	Title:      "Tesla Model 3",
	Prize:      "Tesla Model 3 Long Range",
	PrizeValue: 42000,
	ImageURL:   "https://cdn.example/tesla.jpg",
}

func TestNotifyWinner(t *testing.T) {
	s := memstore.New()
	d := newTestDispatcher(s)
	winner := domain.User{ID: "u7", Username: "ada", Email: "ada@example.com"}
	outcome := domain.DrawOutcome{WinningTicket: 42, Seed: "seed", BlockHash: "0xhash"}

	require.NoError(t, d.NotifyWinner(context.Background(), comp, winner, outcome))

	notes := s.Notifications()
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, "id-1", n.ID)
	assert.Equal(t, "u7", n.UserID)
	assert.Equal(t, domain.NotificationWin, n.Type)
	assert.Equal(t, "c1", n.CompetitionID)
	assert.Equal(t, comp.ImageURL, n.ImageURL)
	assert.False(t, n.Read)
	assert.Equal(t, fixedNow, n.CreatedAt)
	assert.Equal(t, 42, n.Data["ticketNumber"])

	logs := s.EmailLogs()
	require.Len(t, logs, 1)
	e := logs[0]
	assert.Equal(t, "ada@example.com", e.To)
	assert.Equal(t, "You won Tesla Model 3!", e.Subject)
	assert.False(t, e.Sent)
	assert.Empty(t, e.Error)
	assert.Contains(t, e.Content.HTML, "#42")
	assert.Contains(t, e.Content.HTML, "https://draws.example/competitions/c1")
	assert.Contains(t, e.Content.Text, "worth £42000.00")
	assert.Contains(t, e.Content.Text, "Block hash: 0xhash")
}

func TestNotifyWinnerEscapesHTML(t *testing.T) {
	s := memstore.New()
	d := newTestDispatcher(s)
	c := comp
	c.Title = `<script>alert(1)</script>`
	require.NoError(t, d.NotifyWinner(context.Background(), c, domain.User{ID: "u", Email: "x@example.com"}, domain.DrawOutcome{WinningTicket: 1}))
	assert.NotContains(t, s.EmailLogs()[0].Content.HTML, "<script>")
}

func TestNotifyWinnerWithoutEmail(t *testing.T) {
	s := memstore.New()
	d := newTestDispatcher(s)
	require.NoError(t, d.NotifyWinner(context.Background(), comp, domain.User{ID: "u"}, domain.DrawOutcome{WinningTicket: 1}))
	assert.Len(t, s.Notifications(), 1)
	assert.Empty(t, s.EmailLogs())
}

type flakyNotifications struct {
	mu      sync.Mutex
	failFor map[string]bool
	created []domain.Notification
}

func (f *flakyNotifications) Create(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[n.UserID] {
		return errors.New("write timeout")
	}
	f.created = append(f.created, n)
	return nil
}

func (f *flakyNotifications) ListByUser(context.Context, string, domain.ListOpts) ([]domain.Notification, error) {
	return nil, nil
}

func TestNotifyEndingSoonFanOut(t *testing.T) {
	s := memstore.New()
	d := newTestDispatcher(s, WithConcurrency(2))
	users := []string{"u1", "u2", "u3", "u4", "u5"}

	n, err := d.NotifyEndingSoon(context.Background(), comp, users, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	notes := s.Notifications()
	require.Len(t, notes, 5)
	got := make([]string, 0, len(notes))
	for _, note := range notes {
		got = append(got, note.UserID)
		assert.Equal(t, domain.NotificationEndingSoon, note.Type)
		assert.Equal(t, "Tesla Model 3 ends in 5 hours. Good luck!", note.Message)
		assert.Equal(t, 5, note.Data["hoursLeft"])
	}
	assert.ElementsMatch(t, users, got)
}

func TestNotifyEndingSoonCapturesPerUserErrors(t *testing.T) {
	store := &flakyNotifications{failFor: map[string]bool{"u2": true}}
	d := NewDispatcher(store, memstore.New().Stores().EmailLogs, discard(), WithIDGenerator(sequentialIDs()))

	n, err := d.NotifyEndingSoon(context.Background(), comp, []string{"u1", "u2", "u3"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 failed")
	assert.Contains(t, err.Error(), "user u2")
	assert.Equal(t, 2, n)
	assert.Len(t, store.created, 2)
	assert.Contains(t, store.created[0].Message, "less than an hour")
}
