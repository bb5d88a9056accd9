package entropy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ExplorerRung reads the latest Ethereum block hash from an Etherscan-style
// explorer using its JSON-RPC proxy module.
type ExplorerRung struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewExplorerRung creates an ExplorerRung. baseURL is the explorer API root,
// e.g. "https://api.etherscan.io/api".
func NewExplorerRung(baseURL, apiKey string) *ExplorerRung {
	return &ExplorerRung{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
	}
}

// Name implements Rung.
func (e *ExplorerRung) Name() string { return SourceExplorer }

type proxyResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type explorerBlock struct {
	Hash   string `json:"hash"`
	Number string `json:"number"`
}

// Fetch implements Rung.
func (e *ExplorerRung) Fetch(ctx context.Context) (Result, error) {
	var numHex string
	if err := e.call(ctx, url.Values{"action": {"eth_blockNumber"}}, &numHex); err != nil {
		return Result{}, fmt.Errorf("entropy/explorer: block number: %w", err)
	}
	number, err := hexutil.DecodeUint64(numHex)
	if err != nil {
		return Result{}, fmt.Errorf("entropy/explorer: decode block number %q: %w", numHex, err)
	}

	var block explorerBlock
	params := url.Values{
		"action":  {"eth_getBlockByNumber"},
		"tag":     {hexutil.EncodeUint64(number)},
		"boolean": {"false"},
	}
	if err := e.call(ctx, params, &block); err != nil {
		return Result{}, fmt.Errorf("entropy/explorer: block %d: %w", number, err)
	}
	hash, err := parseHash(block.Hash)
	if err != nil {
		return Result{}, fmt.Errorf("entropy/explorer: block %d: %w", number, err)
	}
	return Result{Hash: hash, Source: SourceExplorer, BlockNumber: number}, nil
}

func (e *ExplorerRung) call(ctx context.Context, params url.Values, out any) error {
	params.Set("module", "proxy")
	if e.apiKey != "" {
		params.Set("apikey", e.apiKey)
	}
	body, err := doGet(ctx, e.httpClient, e.baseURL+"?"+params.Encode())
	if err != nil {
		return err
	}

	var resp proxyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("rpc error: %s", resp.Error.Message)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return fmt.Errorf("missing result")
	}
	// Rate-limited or keyless calls return a plain string message in result.
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("unexpected result %s: %w", truncate(string(resp.Result), 120), err)
	}
	return nil
}
