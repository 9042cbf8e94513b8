package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/utxo-indexer/internal/rpcclient"
	"github.com/Klingon-tech/utxo-indexer/pkg/block"
)

// NodeSource reads blocks from a bitcoind-compatible JSON-RPC endpoint.
type NodeSource struct {
	client *rpcclient.Client
}

// NewNode connects to the node at cfg.URL. Credentials come from the
// cookie file when one is configured.
func NewNode(cfg Config) (*NodeSource, error) {
	return newNode(cfg, rpcclient.Options{})
}

func newNode(cfg Config, opts rpcclient.Options) (*NodeSource, error) {
	opts.Version = rpcclient.Version1
	opts.Timeout = cfg.Timeout
	opts.User, opts.Password = cfg.User, cfg.Password
	if cfg.Cookie != "" {
		user, pass, err := rpcclient.ReadCookie(cfg.Cookie)
		if err != nil {
			return nil, err
		}
		opts.User, opts.Password = user, pass
	}
	return &NodeSource{client: rpcclient.NewWithOptions(cfg.URL, opts)}, nil
}

// FetchBlock resolves the height to a hash and fetches the block with
// decoded transactions.
func (s *NodeSource) FetchBlock(ctx context.Context, height int64) (*block.Block, error) {
	if height < 0 {
		return nil, fmt.Errorf("invalid height %d", height)
	}

	var hash string
	err := s.client.Call(ctx, "getblockhash", []interface{}{height}, &hash)
	var rpcErr *rpcclient.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == heightOutOfRange {
		return nil, ErrBlockNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("getblockhash %d: %w", height, err)
	}

	var raw json.RawMessage
	if err := s.client.Call(ctx, "getblock", []interface{}{hash, 2}, &raw); err != nil {
		return nil, fmt.Errorf("getblock %s: %w", hash, err)
	}
	b, err := decodeBlock(raw, height)
	if err != nil {
		return nil, err
	}
	if b.Hash != hash {
		return nil, fmt.Errorf("%w: requested hash %s, got %s", ErrMalformedBlock, hash, b.Hash)
	}
	return b, nil
}

// Broadcast relays rawTx with sendrawtransaction.
func (s *NodeSource) Broadcast(ctx context.Context, rawTx string) (string, error) {
	var txid string
	err := s.client.Call(ctx, "sendrawtransaction", []interface{}{rawTx}, &txid)
	var rpcErr *rpcclient.RPCError
	if errors.As(err, &rpcErr) {
		return "", fmt.Errorf("%w: %s (code %d)", ErrTxRejected, rpcErr.Message, rpcErr.Code)
	}
	if err != nil {
		return "", fmt.Errorf("sendrawtransaction: %w", err)
	}
	return txid, nil
}

// TipHeight returns the node's best block height.
func (s *NodeSource) TipHeight(ctx context.Context) (int64, error) {
	var n int64
	if err := s.client.Call(ctx, "getblockcount", nil, &n); err != nil {
		return 0, fmt.Errorf("getblockcount: %w", err)
	}
	return n, nil
}
