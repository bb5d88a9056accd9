package entropy

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const maxBodyBytes = 1 << 20

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func doGet(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// parseHash accepts a 32-byte hash with or without a 0x prefix and returns it
// in canonical 0x-prefixed lowercase form.
func parseHash(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing hash")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(strings.ToLower(s))
	if err != nil {
		return "", fmt.Errorf("malformed hash %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return "", fmt.Errorf("hash %q has %d bytes, want %d", s, len(b), common.HashLength)
	}
	return common.BytesToHash(b).Hex(), nil
}

// parseBareHash is parseHash for sources that publish hashes without a
// prefix; the original form is kept so the draw can be checked against the
// source verbatim.
func parseBareHash(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("missing hash")
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return "", fmt.Errorf("malformed hash %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return "", fmt.Errorf("hash %q has %d bytes, want %d", s, len(b), common.HashLength)
	}
	return s, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
