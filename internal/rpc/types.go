package rpc

import (
	"time"

	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/internal/wallet"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeUnavailable    = -32001
	CodeTxRejected     = -32002
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// HeightParam is used by block_getByHeight.
type HeightParam struct {
	Height int64 `json:"height"`
}

// BroadcastParam is used by tx_broadcast.
type BroadcastParam struct {
	Hex string `json:"hex"`
}

// OutpointParam is used by utxo_get.
type OutpointParam struct {
	TxID  string `json:"tx_id"`
	Index uint32 `json:"index"`
}

// AddressParam is used by utxo_getByAddress and utxo_getBalance.
type AddressParam struct {
	Address string `json:"address"`
}

// SelectCoinsParam is used by utxo_selectCoins. Amount is in the smallest
// currency unit.
type SelectCoinsParam struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// PageParam is used by stats_getHolders. Zero values select the defaults.
type PageParam struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ── Result types ────────────────────────────────────────────────────────

// IndexInfoResult is returned by index_getInfo.
type IndexInfoResult struct {
	Chain         string `json:"chain"`
	Height        int64  `json:"height"`
	GenesisHeight int64  `json:"genesis_height"`
	State         string `json:"state"`
	LastError     string `json:"last_error,omitempty"`
}

// BroadcastResult is returned by tx_broadcast.
type BroadcastResult struct {
	TxID string `json:"tx_id"`
}

// CommitmentResult is returned by index_getCommitment.
type CommitmentResult struct {
	Height     int64  `json:"height"`
	Commitment string `json:"commitment"`
}

// UTXOListResult is returned by utxo_getByAddress.
type UTXOListResult struct {
	Address string       `json:"address"`
	UTXOs   []*utxo.UTXO `json:"utxos"`
}

// SelectCoinsResult is returned by utxo_selectCoins.
type SelectCoinsResult struct {
	Address string `json:"address"`
	*wallet.CoinSelection
}

// SupplyResult is returned by stats_getSupply.
type SupplyResult struct {
	Supply    int64     `json:"supply"`
	UTXOCount int       `json:"utxo_count"`
	Height    int64     `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
}
