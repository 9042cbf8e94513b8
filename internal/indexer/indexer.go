// Package indexer replays blocks from a source into the UTXO set.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/utxo-indexer/internal/log"
	"github.com/Klingon-tech/utxo-indexer/internal/source"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/pkg/block"
)

// Default intervals.
const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultRetryInterval = 5 * time.Second
)

// progressEvery controls how often sync progress is logged at info level.
const progressEvery = 1000

// Config controls the indexer loop.
type Config struct {
	PollInterval  time.Duration // wait between polls once caught up
	RetryInterval time.Duration // wait before retrying a failed height
	// Confirmations keeps the indexer this many blocks behind the source
	// tip. Zero indexes up to the tip. Requires a source.TipSource.
	Confirmations int64
}

// Indexer is the single writer of the UTXO set and the cursor. Each block
// is applied together with its cursor advance as one store unit.
type Indexer struct {
	src     source.Source
	store   *utxo.Store
	cursor  *utxo.Cursor
	cfg     Config
	metrics *Metrics
	logger  zerolog.Logger
	sm      *fsm.FSM

	// Loop state, owned by the Run goroutine.
	next     int64
	pending  *block.Block
	caughtUp bool

	height  atomic.Int64
	errMu   sync.Mutex
	lastErr error
}

// New creates an indexer. A nil metrics value registers nothing globally.
func New(src source.Source, store *utxo.Store, cursor *utxo.Cursor, cfg Config, metrics *Metrics) *Indexer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	ix := &Indexer{
		src:     src,
		store:   store,
		cursor:  cursor,
		cfg:     cfg,
		metrics: metrics,
		logger:  klog.Indexer,
	}
	ix.sm = newStateMachine(func(state string) {
		ix.metrics.setState(state)
		ix.logger.Debug().Str("state", state).Int64("next", ix.next).Msg("State change")
	})
	ix.height.Store(cursor.Genesis() - 1)
	return ix
}

// Height returns the last applied block height.
func (ix *Indexer) Height() int64 {
	return ix.height.Load()
}

// State returns the current loop state.
func (ix *Indexer) State() string {
	return ix.sm.Current()
}

// LastError returns the error of the most recent failed attempt, or nil
// once a block has been applied since.
func (ix *Indexer) LastError() error {
	ix.errMu.Lock()
	defer ix.errMu.Unlock()
	return ix.lastErr
}

// Run drives the loop until ctx is cancelled. Cancellation is observed
// between steps and during waits; a block being committed is always
// finished first. Errors never stop the loop: the failed height is retried
// after RetryInterval.
func (ix *Indexer) Run(ctx context.Context) error {
	cur, ok := ix.loadCursor(ctx)
	if !ok {
		return nil
	}
	ix.next = cur + 1
	ix.height.Store(cur)
	ix.metrics.CursorHeight.Set(float64(cur))
	ix.metrics.setState(ix.sm.Current())

	ix.logger.Info().
		Int64("cursor", cur).
		Int64("next", ix.next).
		Int64("confirmations", ix.cfg.Confirmations).
		Msg("Indexer started")

	for ctx.Err() == nil {
		ix.step(ctx)
	}

	ix.logger.Info().Int64("height", ix.Height()).Msg("Indexer stopped")
	return nil
}

// loadCursor reads the cursor, retrying storage errors until ctx ends.
func (ix *Indexer) loadCursor(ctx context.Context) (int64, bool) {
	for {
		cur, err := ix.cursor.Get()
		if err == nil {
			return cur, true
		}
		ix.metrics.Errors.WithLabelValues(errKindStore).Inc()
		ix.logger.Error().Err(err).Msg("Failed to read cursor, retrying")
		if !sleep(ctx, ix.cfg.RetryInterval) {
			return 0, false
		}
	}
}

// step performs the work of the current state and fires one transition.
func (ix *Indexer) step(ctx context.Context) {
	// Transitions must complete even when shutdown has begun.
	tctx := context.WithoutCancel(ctx)

	switch ix.sm.Current() {
	case StateApplying:
		b := ix.pending
		ix.pending = nil
		if b == nil {
			var err error
			b, err = ix.fetch(ctx, ix.next)
			if errors.Is(err, source.ErrBlockNotAvailable) {
				if !ix.caughtUp {
					ix.caughtUp = true
					ix.logger.Info().Int64("height", ix.Height()).Msg("Caught up with source")
				}
				ix.event(tctx, EventTipReached)
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				ix.fail(tctx, errKindSource, err)
				return
			}
		}
		if b.Height != ix.next {
			ix.fail(tctx, errKindSource, fmt.Errorf("%w: expected height %d, got %d", source.ErrMalformedBlock, ix.next, b.Height))
			return
		}
		diff, err := ComputeDiff(b)
		if err != nil {
			ix.fail(tctx, errKindSource, fmt.Errorf("block %d: %w", b.Height, err))
			return
		}
		if err := ix.apply(b, diff); err != nil {
			ix.fail(tctx, errKindStore, err)
			return
		}
		ix.event(tctx, EventApplied)

	case StateAdvancing:
		ix.next++
		ix.event(tctx, EventAdvance)

	case StateCaughtUpWait:
		if !sleep(ctx, ix.cfg.PollInterval) {
			return
		}
		b, err := ix.fetch(ctx, ix.next)
		if errors.Is(err, source.ErrBlockNotAvailable) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ix.fail(tctx, errKindSource, err)
			return
		}
		ix.pending = b
		ix.event(tctx, EventBlockReady)

	case StateRetryBackoff:
		if !sleep(ctx, ix.cfg.RetryInterval) {
			return
		}
		ix.event(tctx, EventRetry)
	}
}

// fetch gets the block at height, holding back blocks that are not yet
// buried under the configured number of confirmations.
func (ix *Indexer) fetch(ctx context.Context, height int64) (*block.Block, error) {
	if ix.cfg.Confirmations > 0 {
		if ts, ok := ix.src.(source.TipSource); ok {
			tip, err := ts.TipHeight(ctx)
			if err != nil {
				return nil, err
			}
			if tip-ix.cfg.Confirmations < height {
				return nil, source.ErrBlockNotAvailable
			}
		}
	}
	return ix.src.FetchBlock(ctx, height)
}

// apply commits the block's additions, deletions and the cursor advance
// in one store unit.
func (ix *Indexer) apply(b *block.Block, d *Diff) error {
	start := time.Now()
	var added, spent int
	err := ix.store.Update(func(w *utxo.Writer) error {
		if err := d.Apply(w); err != nil {
			return err
		}
		added, spent = w.Added(), w.Spent()
		return ix.cursor.Stage(w, b.Height)
	})
	if err != nil {
		return fmt.Errorf("apply block %d: %w", b.Height, err)
	}
	elapsed := time.Since(start)

	ix.height.Store(b.Height)
	ix.setLastErr(nil)

	ix.metrics.CursorHeight.Set(float64(b.Height))
	ix.metrics.LastApply.SetToCurrentTime()
	ix.metrics.BlocksApplied.Inc()
	ix.metrics.UtxosAdded.Add(float64(added))
	ix.metrics.UtxosSpent.Add(float64(spent))
	ix.metrics.ApplyDuration.Observe(elapsed.Seconds())

	ix.logger.Debug().
		Int64("height", b.Height).
		Str("hash", b.Hash).
		Int("txs", len(b.Tx)).
		Int("added", added).
		Int("spent", spent).
		Dur("took", elapsed).
		Msg("Block applied")
	if b.Height%progressEvery == 0 {
		ix.logger.Info().Int64("height", b.Height).Str("hash", b.Hash).Msg("Sync progress")
	}
	return nil
}

func (ix *Indexer) fail(ctx context.Context, kind string, err error) {
	ix.setLastErr(err)
	ix.metrics.Errors.WithLabelValues(kind).Inc()
	ix.logger.Warn().
		Err(err).
		Str("kind", kind).
		Int64("height", ix.next).
		Dur("retry_in", ix.cfg.RetryInterval).
		Msg("Indexing failed, retrying same height")
	ix.event(ctx, EventFail)
}

func (ix *Indexer) event(ctx context.Context, name string) {
	if err := ix.sm.Event(ctx, name); err != nil {
		ix.logger.Error().Err(err).Str("event", name).Str("state", ix.sm.Current()).Msg("Invalid state transition")
	}
}

func (ix *Indexer) setLastErr(err error) {
	ix.errMu.Lock()
	ix.lastErr = err
	ix.errMu.Unlock()
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
