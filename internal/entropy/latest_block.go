package entropy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// LatestBlockRung reads the tip hash from a "latest block" endpoint such as
// https://blockchain.info/latestblock.
type LatestBlockRung struct {
	url        string
	httpClient *http.Client
}

// NewLatestBlockRung creates a LatestBlockRung.
func NewLatestBlockRung(url string) *LatestBlockRung {
	return &LatestBlockRung{url: url, httpClient: newHTTPClient()}
}

// Name implements Rung.
func (b *LatestBlockRung) Name() string { return SourceLatestBlock }

type latestBlock struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

// Fetch implements Rung.
func (b *LatestBlockRung) Fetch(ctx context.Context) (Result, error) {
	body, err := doGet(ctx, b.httpClient, b.url)
	if err != nil {
		return Result{}, fmt.Errorf("entropy/latest_block: %w", err)
	}
	var blk latestBlock
	if err := json.Unmarshal(body, &blk); err != nil {
		return Result{}, fmt.Errorf("entropy/latest_block: decode: %w", err)
	}
	hash, err := parseBareHash(blk.Hash)
	if err != nil {
		return Result{}, fmt.Errorf("entropy/latest_block: %w", err)
	}
	return Result{Hash: hash, Source: SourceLatestBlock, BlockNumber: blk.Height}, nil
}
