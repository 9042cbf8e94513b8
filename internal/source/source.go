// Package source fetches blocks by height from a node or block proxy.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Klingon-tech/utxo-indexer/pkg/block"
)

// Source errors.
var (
	// ErrBlockNotAvailable means the height is above the source's tip.
	ErrBlockNotAvailable = errors.New("block not available")
	ErrMalformedBlock    = errors.New("malformed block")
	// ErrTxRejected wraps the node's reason for refusing a broadcast.
	ErrTxRejected = errors.New("transaction rejected")
)

// heightOutOfRange is the node's RPC_INVALID_PARAMETER code returned by
// getblockhash for a height above the tip.
const heightOutOfRange = -8

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Source supplies blocks by height.
type Source interface {
	// FetchBlock returns the block at height, ErrBlockNotAvailable when
	// the chain has not reached it, or any other error on failure.
	FetchBlock(ctx context.Context, height int64) (*block.Block, error)
}

// TipSource is implemented by sources that can report the chain tip.
type TipSource interface {
	TipHeight(ctx context.Context) (int64, error)
}

// Broadcaster is implemented by sources that can relay a signed raw
// transaction to the network.
type Broadcaster interface {
	// Broadcast submits rawTx (hex) and returns the txid the node reports.
	Broadcast(ctx context.Context, rawTx string) (string, error)
}

// Kinds accepted by New.
const (
	KindRPC  = "rpc"
	KindREST = "rest"
)

// Config selects and configures a source.
type Config struct {
	Kind     string
	URL      string
	User     string
	Password string
	Cookie   string // path to the node's .cookie; overrides User/Password
	Timeout  time.Duration
}

// New builds the source described by cfg.
func New(cfg Config) (Source, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source url is required")
	}
	switch cfg.Kind {
	case KindRPC, "":
		return NewNode(cfg)
	case KindREST:
		return NewREST(cfg.URL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// decodeBlock parses and validates a block body for the requested height.
func decodeBlock(data []byte, height int64) (*block.Block, error) {
	var b block.Block
	if err := jsonAPI.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: height %d: %v", ErrMalformedBlock, height, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: height %d: %v", ErrMalformedBlock, height, err)
	}
	if b.Height != height {
		return nil, fmt.Errorf("%w: requested height %d, got %d", ErrMalformedBlock, height, b.Height)
	}
	return &b, nil
}
