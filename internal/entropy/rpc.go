package entropy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

type headerReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RPCRung reads the latest block header from an Ethereum JSON-RPC node.
type RPCRung struct {
	client headerReader
	closer func()
}

// NewRPCRung dials the node at rawURL. HTTP endpoints are dialled lazily, so
// this does not block on the network.
func NewRPCRung(ctx context.Context, rawURL string) (*RPCRung, error) {
	c, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("entropy/rpc: dial: %w", err)
	}
	return &RPCRung{client: c, closer: c.Close}, nil
}

// Name implements Rung.
func (r *RPCRung) Name() string { return SourceRPC }

// Fetch implements Rung.
func (r *RPCRung) Fetch(ctx context.Context) (Result, error) {
	h, err := r.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("entropy/rpc: latest header: %w", err)
	}
	if h == nil || h.Number == nil {
		return Result{}, fmt.Errorf("entropy/rpc: empty header")
	}
	return Result{Hash: h.Hash().Hex(), Source: SourceRPC, BlockNumber: h.Number.Uint64()}, nil
}

// Close releases the underlying RPC client.
func (r *RPCRung) Close() {
	if r.closer != nil {
		r.closer()
	}
}
