package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/prizedraw/internal/authz"
	s3blob "github.com/alanyoungcy/prizedraw/internal/blob/s3"
	"github.com/alanyoungcy/prizedraw/internal/domain"
	"github.com/alanyoungcy/prizedraw/internal/engine"
	"github.com/alanyoungcy/prizedraw/internal/entropy"
	"github.com/alanyoungcy/prizedraw/internal/notify"
	"github.com/alanyoungcy/prizedraw/internal/server/handler"
	"github.com/alanyoungcy/prizedraw/internal/store/memstore"
	"github.com/alanyoungcy/prizedraw/internal/trigger"
)

const apiKey = "test-key"

var past = time.Now().UTC().Add(-time.Hour)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// countingLimiter allows the first n calls per key.
type countingLimiter struct {
	mu    sync.Mutex
	n     int
	calls map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[key]++
	return l.calls[key] <= l.n, nil
}

type fixture struct {
	store   *memstore.Store
	handler http.Handler
}

func newFixture(t *testing.T, limiter domain.RateLimiter) *fixture {
	t.Helper()
	return newFixtureWithKey(t, limiter, apiKey)
}

func newFixtureWithKey(t *testing.T, limiter domain.RateLimiter, key string) *fixture {
	t.Helper()
	store := memstore.New()
	st := store.Stores()
	store.PutUser(domain.User{ID: "admin", Username: "root", Role: "admin"})
	store.PutUser(domain.User{ID: "player", Username: "ann", Email: "ann@example.com", Role: "user"})

	blob := s3blob.NewMemoryBlob()
	receipts := s3blob.NewReceiptStore(blob, blob)

	eng := engine.New(engine.Deps{
		Stores:   st,
		Entropy:  entropy.NewLadder(discard(), time.Second),
		Notifier: notify.NewDispatcher(st.Notifications, st.EmailLogs, discard()),
		Receipts: receipts,
	}, discard())

	admins, err := authz.NewAdminChecker(st.Users, 16, time.Minute)
	require.NoError(t, err)

	h := NewHandler(Config{APIKey: key, RateLimit: 2, RateWindow: time.Minute}, Handlers{
		Health:       handler.NewHealthHandler(map[string]handler.Pinger{"store": func(context.Context) error { return nil }}, discard()),
		Status:       handler.NewStatusHandler("server", time.Now(), nil),
		Resolve:      handler.NewResolveHandler(trigger.NewOnDemand(eng, admins, discard()), discard()),
		Competitions: handler.NewCompetitionHandler(st.Competitions, receipts, admins, discard()),
	}, limiter, nil, discard())

	return &fixture{store: store, handler: h}
}

func (f *fixture) seedDue(id string, sold int) {
	f.store.PutCompetition(domain.Competition{
		ID: id, Title: "Prize " + id, Status: domain.StatusActive, EndsAt: past, TicketsSold: sold,
	})
	for i := 1; i <= sold; i++ {
		f.store.PutTickets(domain.Ticket{
			ID: id + "-t" + string(rune('0'+i)), CompetitionID: id, TicketNumber: i, UserID: "player",
		})
	}
}

func (f *fixture) do(method, path, caller, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-API-Key", apiKey)
	if caller != "" {
		req.Header.Set("X-User-ID", caller)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestResolveAllAsAdmin(t *testing.T) {
	f := newFixture(t, nil)
	f.seedDue("c1", 3)
	f.seedDue("c2", 0)

	rec, body := f.do(http.MethodPost, "/api/admin/resolve", "admin", `{"mode":"all"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["processedCount"])

	c1, _ := f.store.Competition("c1")
	assert.Equal(t, domain.StatusComplete, c1.Status)
	c2, _ := f.store.Competition("c2")
	assert.Equal(t, domain.StatusCancelled, c2.Status)
}

func TestResolveOneThenReceipt(t *testing.T) {
	f := newFixture(t, nil)
	f.seedDue("c1", 5)

	rec, body := f.do(http.MethodPost, "/api/admin/resolve", "admin", `{"competitionId":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["processedCount"])
	assert.Equal(t, "completed", body["outcome"])

	// A second call is a no-op on a terminal competition.
	_, body = f.do(http.MethodPost, "/api/admin/resolve", "admin", `{"competitionId":"c1"}`)
	assert.Equal(t, float64(0), body["processedCount"])

	rec, body = f.do(http.MethodGet, "/api/competitions/c1/receipt", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", body["competitionId"])
	assert.Equal(t, float64(5), body["ticketsSold"])

	rec, body = f.do(http.MethodGet, "/api/competitions/c1", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "complete", body["status"])
	winner, ok := body["winner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "player", winner["userId"])
	assert.NotContains(t, rec.Body.String(), "ann@example.com")
}

func TestResolveErrorCodes(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name, caller, body string
		status             int
		code               string
	}{
		{"no caller", "", `{}`, http.StatusUnauthorized, "unauthenticated"},
		{"not admin", "player", `{}`, http.StatusForbidden, "permission-denied"},
		{"unknown user", "ghost", `{}`, http.StatusForbidden, "permission-denied"},
		{"missing id", "admin", `{"mode":"one"}`, http.StatusBadRequest, "invalid-argument"},
		{"bad json", "admin", `{`, http.StatusBadRequest, "invalid-argument"},
		{"unknown competition", "admin", `{"competitionId":"nope"}`, http.StatusNotFound, "not-found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := f.do(http.MethodPost, "/api/admin/resolve", tc.caller, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/resolve", strings.NewReader(`{}`))
	req.Header.Set("X-User-ID", "admin")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallerHeaderUntrustedWithoutAPIKey(t *testing.T) {
	f := newFixtureWithKey(t, nil, "")
	f.seedDue("c1", 0)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/resolve", strings.NewReader(`{}`))
	req.Header.Set("X-User-ID", "admin")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "unauthenticated", body["code"])

	c, _ := f.store.Competition("c1")
	assert.Equal(t, domain.StatusActive, c.Status)
}

func TestResolveRateLimited(t *testing.T) {
	f := newFixture(t, &countingLimiter{n: 2, calls: map[string]int{}})
	for i := 0; i < 2; i++ {
		rec, _ := f.do(http.MethodPost, "/api/admin/resolve", "admin", `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := f.do(http.MethodPost, "/api/admin/resolve", "admin", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "resource-exhausted", body["code"])
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestCompetitionRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil)
	f.seedDue("c1", 1)
	rec, _ := f.do(http.MethodGet, "/api/competitions/c1", "player", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(http.MethodGet, "/api/competitions/missing", "admin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReceiptMissing(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(http.MethodGet, "/api/competitions/c9/receipt", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not-found", body["code"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/admin/resolve", nil)
	req.Header.Set("Origin", "https://admin.example")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
