package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

// testDSNEnv names the database the integration tests below run against.
// They are skipped when it is unset.
const testDSNEnv = "PRIZEDRAW_TEST_POSTGRES_DSN"

func TestIsNoRowsUnwraps(t *testing.T) {
	assert.True(t, isNoRows(pgx.ErrNoRows))
	assert.True(t, isNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, isNoRows(domain.ErrNotFound))
	assert.False(t, isNoRows(nil))
}

type pgFixture struct {
	client *Client
	store  *CompetitionStore
	prefix string
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.RunMigrations(ctx))

	return &pgFixture{
		client: client,
		store:  NewCompetitionStore(client.Pool()),
		prefix: fmt.Sprintf("it%d", time.Now().UnixNano()),
	}
}

func (f *pgFixture) id(s string) string { return f.prefix + "-" + s }

// seed inserts a user, a competition in status and two tickets on it.
func (f *pgFixture) seed(t *testing.T, name string, status domain.CompetitionStatus) string {
	t.Helper()
	ctx := context.Background()
	pool := f.client.Pool()
	cid := f.id(name)
	uid := cid + "-user"

	_, err := pool.Exec(ctx, `INSERT INTO users (id, username, email) VALUES ($1, 'ann', 'ann@example.com')`, uid)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO competitions (id, title, status, ends_at, tickets_sold)
		VALUES ($1, 'Car', $2, $3, 2)`, cid, string(status), time.Now().Add(-time.Minute))
	require.NoError(t, err)
	for n := 1; n <= 2; n++ {
		_, err = pool.Exec(ctx, `INSERT INTO tickets (id, competition_id, ticket_number, user_id)
			VALUES ($1, $2, $3, $4)`, fmt.Sprintf("%s-t%d", cid, n), cid, n, uid)
		require.NoError(t, err)
	}
	return cid
}

func outcome(cid string) domain.DrawOutcome {
	return domain.DrawOutcome{
		WinningTicketID: cid + "-t2",
		WinningTicket:   2,
		Winner:          domain.Winner{UserID: cid + "-user", Username: "ann", Email: "ann@example.com"},
		Seed:            "seed",
		BlockHash:       "0xabc",
		EntropySource:   "explorer",
		CompletedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestCompetitionStoreCompleteIsConditional(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	cid := f.seed(t, "complete", domain.StatusActive)
	o := outcome(cid)

	err := f.store.Complete(ctx, cid, domain.StatusEnding, o)
	require.ErrorIs(t, err, domain.ErrStatusConflict)

	got, err := f.store.GetByID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	require.NoError(t, f.store.Complete(ctx, cid, domain.StatusActive, o))
	err = f.store.Complete(ctx, cid, domain.StatusActive, o)
	require.ErrorIs(t, err, domain.ErrStatusConflict)

	got, err = f.store.GetByID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, got.Status)
	require.NotNil(t, got.WinningTicket)
	assert.Equal(t, 2, *got.WinningTicket)
	require.NotNil(t, got.Winner)
	assert.Equal(t, o.Winner.UserID, got.Winner.UserID)

	var winners int
	require.NoError(t, f.client.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE competition_id = $1 AND is_winner`, cid).Scan(&winners))
	assert.Equal(t, 1, winners)
}

func TestCompetitionStoreCompleteRollsBackOnMissingTicket(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	cid := f.seed(t, "rollback", domain.StatusEnding)
	o := outcome(cid)
	o.WinningTicketID = cid + "-t9"

	err := f.store.Complete(ctx, cid, domain.StatusEnding, o)
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.store.GetByID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnding, got.Status)
	assert.Nil(t, got.Winner)
}

func TestCompetitionStoreMarkEndingSoonOnce(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	cid := f.seed(t, "mark", domain.StatusActive)
	at := time.Now().UTC()

	require.NoError(t, f.store.MarkEndingSoon(ctx, cid, at))
	require.ErrorIs(t, f.store.MarkEndingSoon(ctx, cid, at), domain.ErrStatusConflict)

	got, err := f.store.GetByID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnding, got.Status)
	assert.True(t, got.MarkedEndingSoon)
}

func TestCompetitionStoreCancelChecksStatus(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	cid := f.seed(t, "cancel", domain.StatusEnding)
	at := time.Now().UTC()

	require.ErrorIs(t, f.store.Cancel(ctx, cid, domain.StatusActive, at), domain.ErrStatusConflict)
	require.NoError(t, f.store.Cancel(ctx, cid, domain.StatusEnding, at))
	require.ErrorIs(t, f.store.Cancel(ctx, cid, domain.StatusEnding, at), domain.ErrStatusConflict)

	got, err := f.store.GetByID(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestCompetitionStoreUnknownID(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()
	missing := f.id("missing")

	_, err := f.store.GetByID(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.store.Cancel(ctx, missing, domain.StatusActive, time.Now()), domain.ErrNotFound)
	assert.ErrorIs(t, f.store.MarkEndingSoon(ctx, missing, time.Now()), domain.ErrNotFound)
}
