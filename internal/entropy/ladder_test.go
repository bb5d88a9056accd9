package entropy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ethHash = "0x8f5bab218b6bb34476f51ca588e9f4553a3a7ce5e13a66c660a5283e97e9a85a"
	btcHash = "00000000000000000001f3a2b8c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func explorerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "proxy", q.Get("module"))
		assert.Equal(t, "key", q.Get("apikey"))
		switch q.Get("action") {
		case "eth_blockNumber":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":83,"result":"0x12a05f2"}`)
		case "eth_getBlockByNumber":
			assert.Equal(t, "0x12a05f2", q.Get("tag"))
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"number":"0x12a05f2","hash":"%s"}}`, ethHash)
		default:
			http.Error(w, "bad action", http.StatusBadRequest)
		}
	}))
}

func TestExplorerRung(t *testing.T) {
	srv := explorerServer(t)
	defer srv.Close()

	res, err := NewExplorerRung(srv.URL, "key").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ethHash, res.Hash)
	assert.Equal(t, SourceExplorer, res.Source)
	assert.Equal(t, uint64(0x12a05f2), res.BlockNumber)
	assert.False(t, res.Degraded)
}

func TestExplorerRungMalformed(t *testing.T) {
	bodies := map[string]string{
		"rate limit string": `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`,
		"missing result":    `{"jsonrpc":"2.0","id":1}`,
		"not json":          `<html>oops</html>`,
		"rpc error":         `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"boom"}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()
			_, err := NewExplorerRung(srv.URL, "").Fetch(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestExplorerRungBadHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "eth_blockNumber" {
			fmt.Fprint(w, `{"result":"0x10"}`)
			return
		}
		fmt.Fprint(w, `{"result":{"number":"0x10","hash":"0x1234"}}`)
	}))
	defer srv.Close()

	_, err := NewExplorerRung(srv.URL, "").Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 bytes")
}

func TestLatestBlockRung(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"hash":"%s","time":1700000000,"block_index":820000,"height":820000}`, strings.ToUpper(btcHash))
	}))
	defer srv.Close()

	res, err := NewLatestBlockRung(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, btcHash, res.Hash)
	assert.Equal(t, SourceLatestBlock, res.Source)
	assert.Equal(t, uint64(820000), res.BlockNumber)
}

func TestLatestBlockRungMissingHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"height":820000}`)
	}))
	defer srv.Close()

	_, err := NewLatestBlockRung(srv.URL).Fetch(context.Background())
	assert.ErrorContains(t, err, "missing hash")
}

type fakeHeaders struct {
	header *types.Header
	err    error
}

func (f fakeHeaders) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return f.header, f.err
}

func TestRPCRung(t *testing.T) {
	h := &types.Header{Number: big.NewInt(19_000_000), Difficulty: big.NewInt(0), Time: 1_700_000_000}
	r := &RPCRung{client: fakeHeaders{header: h}}

	res, err := r.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.Hash().Hex(), res.Hash)
	assert.Equal(t, uint64(19_000_000), res.BlockNumber)
	assert.Equal(t, SourceRPC, res.Source)

	r = &RPCRung{client: fakeHeaders{err: errors.New("dial tcp: refused")}}
	_, err = r.Fetch(context.Background())
	assert.Error(t, err)
}

type stubRung struct {
	name  string
	res   Result
	err   error
	calls int
}

func (s *stubRung) Name() string { return s.name }

func (s *stubRung) Fetch(ctx context.Context) (Result, error) {
	s.calls++
	return s.res, s.err
}

func TestLadderUsesFirstWorkingRung(t *testing.T) {
	first := &stubRung{name: "a", err: errors.New("down")}
	second := &stubRung{name: "b", res: Result{Hash: ethHash, Source: "b"}}
	third := &stubRung{name: "c", res: Result{Hash: btcHash, Source: "c"}}

	res := NewLadder(testLogger(), time.Second, first, second, third).FetchExternalHash(context.Background())
	assert.Equal(t, ethHash, res.Hash)
	assert.Equal(t, "b", res.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, third.calls)
}

func TestLadderTreatsEmptyHashAsFailure(t *testing.T) {
	empty := &stubRung{name: "a", res: Result{Source: "a"}}
	good := &stubRung{name: "b", res: Result{Hash: ethHash, Source: "b"}}

	res := NewLadder(testLogger(), time.Second, empty, good).FetchExternalHash(context.Background())
	assert.Equal(t, "b", res.Source)
}

func TestLadderFallsBackToLocal(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	l := NewLadder(testLogger(), time.Second,
		NewExplorerRung(down.URL, ""),
		NewLatestBlockRung(down.URL),
	)
	res := l.FetchExternalHash(context.Background())
	assert.True(t, res.Degraded)
	assert.Equal(t, SourceLocal, res.Source)
	_, err := parseHash(res.Hash)
	assert.NoError(t, err)

	other := l.FetchExternalHash(context.Background())
	assert.NotEqual(t, res.Hash, other.Hash)
}

func TestLadderPerAttemptTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	good := &stubRung{name: "b", res: Result{Hash: ethHash, Source: "b"}}
	start := time.Now()
	res := NewLadder(testLogger(), 50*time.Millisecond, NewLatestBlockRung(slow.URL), good).
		FetchExternalHash(context.Background())
	assert.Equal(t, "b", res.Source)
	assert.Less(t, time.Since(start), time.Second)
}
