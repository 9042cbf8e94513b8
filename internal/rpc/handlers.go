package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/utxo-indexer/internal/source"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/internal/wallet"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// commitmentAttempts bounds how often index_getCommitment recomputes while
// the indexer keeps moving underneath it.
const commitmentAttempts = 3

// ── Index endpoints ─────────────────────────────────────────────────────

func (s *Server) handleIndexGetInfo(_ *Request) (interface{}, *Error) {
	res := &IndexInfoResult{
		Chain:         s.backend.Chain,
		Height:        s.backend.Status.Height(),
		GenesisHeight: s.backend.Genesis,
		State:         s.backend.Status.State(),
	}
	if err := s.backend.Status.LastError(); err != nil {
		res.LastError = err.Error()
	}
	return res, nil
}

func (s *Server) handleIndexGetCommitment(_ *Request) (interface{}, *Error) {
	for i := 0; i < commitmentAttempts; i++ {
		before := s.backend.Status.Height()
		root, err := utxo.Commitment(s.backend.Store)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("commitment: %v", err)}
		}
		if s.backend.Status.Height() == before {
			return &CommitmentResult{Height: before, Commitment: root.String()}, nil
		}
	}
	return nil, &Error{Code: CodeUnavailable, Message: "index is advancing, retry later"}
}

// ── UTXO endpoints ──────────────────────────────────────────────────────

func (s *Server) handleUTXOGet(req *Request) (interface{}, *Error) {
	var params OutpointParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.TxID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "tx_id is required"}
	}
	if len(params.TxID) != chainhash.MaxHashStringSize {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid tx_id: must be 32-byte hex"}
	}
	if _, err := chainhash.NewHashFromStr(params.TxID); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid tx_id: must be 32-byte hex"}
	}

	op := types.Outpoint{TxID: strings.ToLower(params.TxID), Vout: params.Index}
	u, err := s.backend.Store.Get(op)
	if errors.Is(err, utxo.ErrNotFound) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("utxo %s not found", op)}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("get utxo: %v", err)}
	}
	return u, nil
}

func (s *Server) handleUTXOGetByAddress(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	utxos, err := s.backend.Wallet.GetUtxos(params.Address)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}

	return &UTXOListResult{
		Address: params.Address,
		UTXOs:   utxos,
	}, nil
}

func (s *Server) handleUTXOGetBalance(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	bal, err := s.backend.Wallet.GetBalanceDetail(params.Address)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return bal, nil
}

func (s *Server) handleUTXOSelectCoins(req *Request) (interface{}, *Error) {
	var params SelectCoinsParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	sel, err := s.backend.Wallet.SelectCoins(params.Address, params.Amount)
	if errors.Is(err, wallet.ErrInvalidTarget) {
		return nil, &Error{Code: CodeInvalidParams, Message: "amount must be positive"}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &SelectCoinsResult{Address: params.Address, CoinSelection: sel}, nil
}

// ── Stats endpoints ─────────────────────────────────────────────────────

func (s *Server) handleStatsGetSupply(_ *Request) (interface{}, *Error) {
	sup, err := s.backend.Stats.Supply()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("supply: %v", err)}
	}
	return &SupplyResult{
		Supply:    sup.Supply,
		UTXOCount: sup.UTXOCount,
		Height:    sup.Height,
		UpdatedAt: sup.UpdatedAt,
	}, nil
}

func (s *Server) handleStatsGetHolders(req *Request) (interface{}, *Error) {
	var params PageParam
	if err := parseOptionalParams(req, &params); err != nil {
		return nil, err
	}
	if params.Page < 0 || params.Limit < 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "page and limit must not be negative"}
	}

	page, err := s.backend.Stats.Holders(params.Page, params.Limit)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("holders: %v", err)}
	}
	return page, nil
}

// ── Block endpoints ─────────────────────────────────────────────────────

func (s *Server) handleBlockGetByHeight(ctx context.Context, req *Request) (interface{}, *Error) {
	if s.backend.Source == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "block source not configured"}
	}
	var params HeightParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Height < 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "height must not be negative"}
	}

	blk, err := s.backend.Source.FetchBlock(ctx, params.Height)
	if errors.Is(err, source.ErrBlockNotAvailable) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block %d not available", params.Height)}
	}
	if err != nil {
		return nil, &Error{Code: CodeUnavailable, Message: fmt.Sprintf("fetch block: %v", err)}
	}
	return blk, nil
}

// ── Transaction endpoints ──────────────────────────────────────────────

// handleTxBroadcast relays an already signed transaction. The hex must
// decode to exactly one serialized transaction.
func (s *Server) handleTxBroadcast(ctx context.Context, req *Request) (interface{}, *Error) {
	b, ok := s.backend.Source.(source.Broadcaster)
	if !ok {
		return nil, &Error{Code: CodeUnavailable, Message: "block source cannot broadcast"}
	}
	var params BroadcastParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(params.Hex)
	if err != nil || len(raw) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "hex must be a non-empty hex string"}
	}
	r := bytes.NewReader(raw)
	tx, err := btcutil.NewTxFromReader(r)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid transaction: %v", err)}
	}
	if r.Len() != 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid transaction: %d trailing bytes", r.Len())}
	}

	txid, err := b.Broadcast(ctx, strings.ToLower(params.Hex))
	if errors.Is(err, source.ErrTxRejected) {
		return nil, &Error{Code: CodeTxRejected, Message: err.Error()}
	}
	if err != nil {
		return nil, &Error{Code: CodeUnavailable, Message: fmt.Sprintf("broadcast: %v", err)}
	}
	if txid == "" {
		txid = tx.Hash().String()
	}
	s.logger.Info().Str("txid", txid).Msg("Transaction broadcast")
	return &BroadcastResult{TxID: txid}, nil
}
