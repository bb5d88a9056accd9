package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded() *Store {
	s := New()
	s.PutCompetition(domain.Competition{ID: "due", Status: domain.StatusActive, EndsAt: now.Add(-time.Minute), TicketsSold: 2})
	s.PutCompetition(domain.Competition{ID: "due-ending", Status: domain.StatusEnding, EndsAt: now, MarkedEndingSoon: true})
	s.PutCompetition(domain.Competition{ID: "soon", Status: domain.StatusActive, EndsAt: now.Add(3 * time.Hour)})
	s.PutCompetition(domain.Competition{ID: "soon-marked", Status: domain.StatusActive, EndsAt: now.Add(3 * time.Hour), MarkedEndingSoon: true})
	s.PutCompetition(domain.Competition{ID: "edge", Status: domain.StatusActive, EndsAt: now.Add(24 * time.Hour)})
	s.PutCompetition(domain.Competition{ID: "later", Status: domain.StatusActive, EndsAt: now.Add(25 * time.Hour)})
	s.PutCompetition(domain.Competition{ID: "done", Status: domain.StatusCancelled, EndsAt: now.Add(-time.Hour)})
	s.PutTickets(
		domain.Ticket{ID: "t1", CompetitionID: "due", TicketNumber: 1, UserID: "u1"},
		domain.Ticket{ID: "t2", CompetitionID: "due", TicketNumber: 2, UserID: "u2"},
	)
	return s
}

func ids(cs []domain.Competition) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestListWindows(t *testing.T) {
	st := seeded().Stores()
	ctx := context.Background()

	due, err := st.Competitions.ListDue(ctx, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"due", "due-ending"}, ids(due))

	soon, err := st.Competitions.ListEndingSoon(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"soon", "edge"}, ids(soon))
}

func TestCompleteIsConditional(t *testing.T) {
	s := seeded()
	st := s.Stores()
	ctx := context.Background()

	outcome := domain.DrawOutcome{
		WinningTicketID: "t2", WinningTicket: 2,
		Winner: domain.Winner{UserID: "u2"}, Seed: "s", BlockHash: "h", CompletedAt: now,
	}
	require.NoError(t, st.Competitions.Complete(ctx, "due", domain.StatusActive, outcome))

	err := st.Competitions.Complete(ctx, "due", domain.StatusActive, outcome)
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	c, err := st.Competitions.GetByID(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, c.Status)
	require.NotNil(t, c.WinningTicket)
	assert.Equal(t, 2, *c.WinningTicket)

	winners := 0
	for _, tk := range s.Tickets("due") {
		if tk.IsWinner {
			winners++
			assert.Equal(t, "t2", tk.ID)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestCompleteUnknownTicketLeavesStateAlone(t *testing.T) {
	s := seeded()
	err := s.Stores().Competitions.Complete(context.Background(), "due", domain.StatusActive,
		domain.DrawOutcome{WinningTicketID: "nope", CompletedAt: now})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	c, _ := s.Competition("due")
	assert.Equal(t, domain.StatusActive, c.Status)
}

func TestMarkEndingSoonOnce(t *testing.T) {
	st := seeded().Stores()
	ctx := context.Background()

	require.NoError(t, st.Competitions.MarkEndingSoon(ctx, "soon", now))
	assert.ErrorIs(t, st.Competitions.MarkEndingSoon(ctx, "soon", now), domain.ErrStatusConflict)
	assert.ErrorIs(t, st.Competitions.MarkEndingSoon(ctx, "soon-marked", now), domain.ErrStatusConflict)

	c, err := st.Competitions.GetByID(ctx, "soon")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnding, c.Status)
	assert.True(t, c.MarkedEndingSoon)
}

func TestCancelFromEnding(t *testing.T) {
	st := seeded().Stores()
	ctx := context.Background()
	require.NoError(t, st.Competitions.Cancel(ctx, "due-ending", domain.StatusEnding, now))
	assert.ErrorIs(t, st.Competitions.Cancel(ctx, "due-ending", domain.StatusEnding, now), domain.ErrStatusConflict)
	assert.ErrorIs(t, st.Competitions.Cancel(ctx, "missing", domain.StatusActive, now), domain.ErrNotFound)
}

func TestNotificationsByUser(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, st.Notifications.Create(ctx, domain.Notification{ID: string(rune('a' + i)), UserID: "u1", CreatedAt: now}))
	}
	require.NoError(t, st.Notifications.Create(ctx, domain.Notification{ID: "x", UserID: "u2", CreatedAt: now}))

	got, err := st.Notifications.ListByUser(ctx, "u1", domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
}
