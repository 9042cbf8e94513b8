// Package stats maintains read models derived from the UTXO set: the
// circulating supply and the holder ranking. They are recomputed on a
// schedule and served from a TTL cache.
package stats

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/utxo-indexer/internal/log"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
)

// DefaultRefresh is the default recompute interval.
const DefaultRefresh = time.Minute

// Holder page limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const snapshotKey = "snapshot"

// Holder is one address in the balance ranking.
type Holder struct {
	Address  string `json:"address"`
	Balance  int64  `json:"balance"`
	Position int    `json:"position"`
	// LastSeen is the highest block height among the address's unspent
	// outputs.
	LastSeen int64 `json:"last_seen"`
}

// Snapshot is one consistent computation of the read models.
type Snapshot struct {
	Supply    int64
	UTXOCount int
	Holders   []Holder // descending by balance
	Height    int64
	UpdatedAt time.Time
}

// Service recomputes and serves the read models.
type Service struct {
	utxos   utxo.Reader
	height  func() int64
	refresh time.Duration
	cache   *ttlcache.Cache[string, *Snapshot]
	mu      sync.Mutex // serializes recomputation
	logger  zerolog.Logger
}

// New creates a stats service. A snapshot lives for two refresh intervals;
// when refreshes keep failing it expires and the next query recomputes.
func New(utxos utxo.Reader, height func() int64, refresh time.Duration) *Service {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Service{
		utxos:   utxos,
		height:  height,
		refresh: refresh,
		cache: ttlcache.New[string, *Snapshot](
			ttlcache.WithTTL[string, *Snapshot](2*refresh),
			ttlcache.WithDisableTouchOnHit[string, *Snapshot](),
		),
		logger: klog.Stats,
	}
}

// Run refreshes the snapshot every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.cache.Start()
	defer s.cache.Stop()

	if _, err := s.Refresh(); err != nil {
		s.logger.Warn().Err(err).Msg("Initial stats refresh failed")
	}

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Refresh(); err != nil {
				s.logger.Warn().Err(err).Msg("Stats refresh failed")
			}
		}
	}
}

// Refresh recomputes the snapshot from the UTXO set and caches it.
func (s *Service) Refresh() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	snap, err := s.compute()
	if err != nil {
		return nil, err
	}
	s.cache.Set(snapshotKey, snap, ttlcache.DefaultTTL)
	s.logger.Debug().
		Int64("height", snap.Height).
		Int64("supply", snap.Supply).
		Int("holders", len(snap.Holders)).
		Dur("took", time.Since(start)).
		Msg("Stats refreshed")
	return snap, nil
}

// Snapshot returns the cached snapshot, computing one if none is cached.
func (s *Service) Snapshot() (*Snapshot, error) {
	if item := s.cache.Get(snapshotKey); item != nil {
		return item.Value(), nil
	}
	return s.Refresh()
}

// compute scans the set once. The scan reads one storage snapshot; the
// height is sampled around it and the scan repeated if a block landed
// in between.
func (s *Service) compute() (*Snapshot, error) {
	const attempts = 3
	var snap *Snapshot
	for i := 0; i < attempts; i++ {
		before := s.height()
		var err error
		snap, err = s.scan()
		if err != nil {
			return nil, err
		}
		snap.Height = s.height()
		if snap.Height == before {
			break
		}
	}
	snap.UpdatedAt = time.Now()
	return snap, nil
}

func (s *Service) scan() (*Snapshot, error) {
	defer klog.Benchmark("stats scan")()
	snap := &Snapshot{}
	byAddr := make(map[string]*Holder)
	err := s.utxos.ForEach(func(u *utxo.UTXO) error {
		snap.Supply += u.Amount
		snap.UTXOCount++
		if u.Address == "" {
			return nil
		}
		h, ok := byAddr[u.Address]
		if !ok {
			h = &Holder{Address: u.Address}
			byAddr[u.Address] = h
		}
		h.Balance += u.Amount
		if u.BlockHeight > h.LastSeen {
			h.LastSeen = u.BlockHeight
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan utxo set: %w", err)
	}

	snap.Holders = make([]Holder, 0, len(byAddr))
	for _, h := range byAddr {
		snap.Holders = append(snap.Holders, *h)
	}
	sort.Slice(snap.Holders, func(i, j int) bool {
		a, b := snap.Holders[i], snap.Holders[j]
		if a.Balance != b.Balance {
			return a.Balance > b.Balance
		}
		return a.Address < b.Address
	})
	for i := range snap.Holders {
		snap.Holders[i].Position = i + 1
	}
	return snap, nil
}

// Supply is the circulating supply at a height.
type Supply struct {
	Supply    int64     `json:"supply"`
	UTXOCount int       `json:"utxo_count"`
	Height    int64     `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Supply returns the total amount held in unspent outputs.
func (s *Service) Supply() (*Supply, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Supply{
		Supply:    snap.Supply,
		UTXOCount: snap.UTXOCount,
		Height:    snap.Height,
		UpdatedAt: snap.UpdatedAt,
	}, nil
}

// HoldersPage is one page of the holder ranking.
type HoldersPage struct {
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int      `json:"total"`
	Data  []Holder `json:"data"`
}

// Holders returns page (1-based) of the ranking. Non-positive page or
// limit select the defaults; limit is capped at MaxLimit.
func (s *Service) Holders(page, limit int) (*HoldersPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	out := &HoldersPage{Page: page, Limit: limit, Total: len(snap.Holders), Data: []Holder{}}
	// Pages past the end are empty. Checked by division so a huge page
	// number cannot overflow the offset.
	if page-1 >= (len(snap.Holders)+limit-1)/limit {
		return out, nil
	}
	offset := (page - 1) * limit
	end := min(offset+limit, len(snap.Holders))
	out.Data = append(out.Data, snap.Holders[offset:end]...)
	return out, nil
}
