package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWindows(t *testing.T) {
	h := newHarness(t)
	h.addCompetition("past", domain.StatusActive, now.Add(-time.Hour), 1, 1)
	h.addCompetition("exact", domain.StatusActive, now, 1, 1)
	h.addCompetition("ending-past", domain.StatusEnding, now.Add(-time.Second), 1, 1)
	h.addCompetition("soon", domain.StatusActive, now.Add(2*time.Hour), 1, 1)
	h.addCompetition("edge", domain.StatusActive, now.Add(24*time.Hour), 1, 1)
	h.addCompetition("far", domain.StatusActive, now.Add(24*time.Hour+time.Second), 1, 1)
	h.addCompetition("ending-future", domain.StatusEnding, now.Add(time.Hour), 1, 1)
	h.store.PutCompetition(domain.Competition{ID: "gone", Status: domain.StatusCancelled, EndsAt: now.Add(-time.Hour)})

	res, err := h.engine.Scan(context.Background(), now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"past", "exact", "ending-past"}, res.Ended)
	assert.ElementsMatch(t, []string{"soon", "edge"}, res.EndingSoon)
}

func TestScanCustomWindow(t *testing.T) {
	h := newHarness(t, WithEndingSoonWindow(time.Hour))
	h.addCompetition("soon", domain.StatusActive, now.Add(30*time.Minute), 1, 1)
	h.addCompetition("later", domain.StatusActive, now.Add(2*time.Hour), 1, 1)

	res, err := h.engine.Scan(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"soon"}, res.EndingSoon)
}

func TestMarkEndingSoon(t *testing.T) {
	h := newHarness(t)
	// 6 tickets over 3 users; deadline 5h59m away.
	h.addCompetition("M", domain.StatusActive, now.Add(5*time.Hour+59*time.Minute), 6, 3)

	res, err := h.engine.MarkEndingSoon(context.Background(), "M")
	require.NoError(t, err)
	assert.True(t, res.Marked)
	assert.Equal(t, 3, res.Notified)

	c, _ := h.store.Competition("M")
	assert.Equal(t, domain.StatusEnding, c.Status)
	assert.True(t, c.MarkedEndingSoon)

	notes := h.store.Notifications()
	require.Len(t, notes, 3)
	users := map[string]bool{}
	for _, n := range notes {
		assert.Equal(t, domain.NotificationEndingSoon, n.Type)
		assert.Equal(t, 5, n.Data["hoursLeft"])
		users[n.UserID] = true
	}
	assert.Len(t, users, 3)

	again, err := h.engine.MarkEndingSoon(context.Background(), "M")
	require.NoError(t, err)
	assert.False(t, again.Marked)
	assert.Len(t, h.store.Notifications(), 3)
}

func TestRunDueProcessesEverything(t *testing.T) {
	h := newHarness(t, WithConcurrency(2))
	h.addCompetition("win1", domain.StatusActive, now.Add(-time.Hour), 3, 2)
	h.addCompetition("win2", domain.StatusEnding, now.Add(-time.Minute), 8, 4)
	h.addCompetition("empty", domain.StatusActive, now.Add(-time.Hour), 0, 0)
	h.addCompetition("soon", domain.StatusActive, now.Add(3*time.Hour), 4, 2)
	// Winning numbers cannot be found: counted as failed, siblings unaffected.
	h.store.PutCompetition(domain.Competition{ID: "broken", Status: domain.StatusActive, EndsAt: now.Add(-time.Hour), TicketsSold: 2})
	h.store.PutTickets(domain.Ticket{ID: "b9", CompetitionID: "broken", TicketNumber: 9, UserID: "u1"})

	rep, err := h.engine.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Ended)
	assert.Equal(t, 1, rep.EndingSoon)
	assert.Equal(t, 2, rep.Completed)
	assert.Equal(t, 1, rep.Cancelled)
	assert.Equal(t, 1, rep.Marked)
	assert.Equal(t, 2, rep.Notified)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 4, rep.Processed())
	assert.Contains(t, h.alerts.got(), notify.EventBatchFailed)

	for id, want := range map[string]domain.CompetitionStatus{
		"win1": domain.StatusComplete, "win2": domain.StatusComplete,
		"empty": domain.StatusCancelled, "soon": domain.StatusEnding, "broken": domain.StatusActive,
	} {
		c, _ := h.store.Competition(id)
		assert.Equal(t, want, c.Status, id)
	}

	// A second run only retries the broken competition.
	rep, err = h.engine.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Ended)
	assert.Zero(t, rep.Processed())
	assert.Equal(t, 2, countType(h.store.Notifications(), domain.NotificationWin))
}

func TestHoursUntil(t *testing.T) {
	assert.Equal(t, 23, hoursUntil(now.Add(23*time.Hour+59*time.Minute), now))
	assert.Equal(t, 0, hoursUntil(now.Add(59*time.Minute), now))
	assert.Equal(t, 0, hoursUntil(now.Add(-time.Hour), now))
	assert.Equal(t, 24, hoursUntil(now.Add(24*time.Hour), now))
}

// brokenTickets fails every ticket listing.
type brokenTickets struct{}

func (brokenTickets) ListByCompetition(context.Context, string) ([]domain.Ticket, error) {
	return nil, errors.New("ticket store unavailable")
}

func TestRunDueCountsMarkedWithFailedRemindersOnce(t *testing.T) {
	h := newHarness(t)
	h.addCompetition("soon", domain.StatusActive, now.Add(3*time.Hour), 4, 2)

	st := h.store.Stores()
	st.Tickets = brokenTickets{}
	eng := New(Deps{
		Stores:   st,
		Entropy:  h.entropy,
		Notifier: notify.NewDispatcher(st.Notifications, st.EmailLogs, discard()),
		Alerts:   h.alerts,
	}, discard(), WithClock(func() time.Time { return now }))

	rep, err := eng.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Marked)
	assert.Equal(t, 1, rep.NotifyFailed)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, 1, rep.Processed())
	assert.NotContains(t, h.alerts.got(), notify.EventBatchFailed)

	c, _ := h.store.Competition("soon")
	assert.Equal(t, domain.StatusEnding, c.Status)
	assert.Empty(t, h.store.Notifications())
}
