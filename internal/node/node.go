// Package node wires the indexer, its storage, the read models and the
// query API into one process that can be embedded in any binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/utxo-indexer/config"
	"github.com/Klingon-tech/utxo-indexer/internal/indexer"
	klog "github.com/Klingon-tech/utxo-indexer/internal/log"
	"github.com/Klingon-tech/utxo-indexer/internal/rpc"
	"github.com/Klingon-tech/utxo-indexer/internal/source"
	"github.com/Klingon-tech/utxo-indexer/internal/stats"
	"github.com/Klingon-tech/utxo-indexer/internal/storage"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/internal/wallet"
)

// Node is a fully-initialized indexer process.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Storage
	db      storage.DB
	chainDB *storage.PrefixDB
	store   *utxo.Store
	cursor  *utxo.Cursor

	// Indexing
	src     source.Source
	indexer *indexer.Indexer

	// Queries
	wallet *wallet.Service
	stats  *stats.Service

	// Servers
	rpcServer     *rpc.Server
	registry      *prometheus.Registry
	metricsServer *http.Server
	metricsLn     net.Listener

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, source, indexer, read models, RPC) but does NOT start
// background goroutines. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.LogsDir(), "utxoindex.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, expandHome(logFile)); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node.With().Str("chain", cfg.Chain).Logger()

	logger.Info().
		Str("source", cfg.Source.Kind).
		Str("url", cfg.Source.URL).
		Str("db", cfg.DB.Backend).
		Int64("genesis", cfg.Indexer.Genesis).
		Msg("Starting UTXO indexer")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.Open(cfg.DB.Backend, cfg.DBDir(), storage.Options{MemTableMB: cfg.DB.MemTableMB})
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	chainDB := storage.NewPrefixDB(db, chainPrefix(cfg.Chain))

	if cfg.Reindex {
		logger.Warn().Msg("Reindex requested, deleting chain index")
		if err := chainDB.DeleteAll(); err != nil {
			db.Close()
			return nil, fmt.Errorf("reindex: %w", err)
		}
	}

	store := utxo.NewStore(chainDB)
	cursor := utxo.NewCursor(chainDB, cfg.Indexer.Genesis)
	if !store.Atomic() {
		logger.Warn().Msg("Database has no atomic batches; a crash mid-block is repaired by re-applying the block")
	}
	logger.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	// ── 3. Block source ─────────────────────────────────────────────
	src, err := source.New(source.Config{
		Kind:     cfg.Source.Kind,
		URL:      cfg.Source.URL,
		User:     cfg.Source.User,
		Password: cfg.Source.Password,
		Cookie:   expandHome(cfg.Source.Cookie),
		Timeout:  cfg.Source.Timeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create block source: %w", err)
	}

	// ── 4. Indexer + metrics ────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ix := indexer.New(src, store, cursor, indexer.Config{
		PollInterval:  cfg.Indexer.Poll,
		RetryInterval: cfg.Indexer.Retry,
		Confirmations: cfg.Indexer.Confirmations,
	}, indexer.NewMetrics(registry))

	// ── 5. Queries ──────────────────────────────────────────────────
	walletSvc := wallet.NewService(store, ix.Height)
	statsSvc := stats.New(store, ix.Height, cfg.Stats.Refresh)

	// ── 6. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		rpcServer = rpc.New(rpcAddr, rpc.Backend{
			Chain:   cfg.Chain,
			Genesis: cfg.Indexer.Genesis,
			Store:   store,
			Status:  ix,
			Wallet:  walletSvc,
			Stats:   statsSvc,
			Source:  src,
		}, cfg.RPC)
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		chainDB:   chainDB,
		store:     store,
		cursor:    cursor,
		src:       src,
		indexer:   ix,
		wallet:    walletSvc,
		stats:     statsSvc,
		rpcServer: rpcServer,
		registry:  registry,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start binds the servers and launches the indexer and read-model refresh.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
	}

	if n.cfg.Metrics.Enabled {
		if err := n.startMetrics(); err != nil {
			if n.rpcServer != nil {
				n.rpcServer.Stop()
			}
			return err
		}
	}

	g, gctx := errgroup.WithContext(n.ctx)
	g.Go(func() error {
		return n.indexer.Run(gctx)
	})
	g.Go(func() error {
		return n.stats.Run(gctx)
	})
	n.group = g

	n.logger.Info().
		Str("rpc", n.RPCAddr()).
		Str("metrics", n.MetricsAddr()).
		Msg("Indexer node started")

	return nil
}

// startMetrics serves the Prometheus registry on cfg.Metrics.Addr.
func (n *Node) startMetrics() error {
	ln, err := net.Listen("tcp", n.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	n.metricsLn = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}))
	n.metricsServer = &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		if err := n.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop performs graceful shutdown in reverse order. A block being applied
// is committed before the indexer returns.
func (n *Node) Stop() {
	n.cancel()
	if n.group != nil {
		if err := n.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			n.logger.Error().Err(err).Msg("Background task failed")
		}
	}

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n.metricsServer.Shutdown(ctx)
		cancel()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Int64("height", n.indexer.Height()).Msg("Goodbye!")
	klog.Close()
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// MetricsAddr returns the address the metrics endpoint is listening on.
func (n *Node) MetricsAddr() string {
	if n.metricsLn == nil {
		return ""
	}
	return n.metricsLn.Addr().String()
}

// Height returns the last indexed height.
func (n *Node) Height() int64 {
	return n.indexer.Height()
}

// State returns the indexer loop state.
func (n *Node) State() string {
	return n.indexer.State()
}

// Wallet returns the address query service.
func (n *Node) Wallet() *wallet.Service {
	return n.wallet
}
