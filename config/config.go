// Package config handles application configuration.
//
// Settings are resolved in order: built-in defaults, then the
// utxoindex.conf file in the data directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds the indexer's runtime configuration.
type Config struct {
	// Core
	Chain   string `conf:"chain"` // namespace for this chain's keys in the database
	DataDir string `conf:"datadir"`

	// Storage
	DB DBConfig

	// Block source (the node or block proxy)
	Source SourceConfig

	// Indexer loop
	Indexer IndexerConfig

	// RPC server
	RPC RPCConfig

	// Prometheus endpoint
	Metrics MetricsConfig

	// Read models
	Stats StatsConfig

	// Logging
	Log LogConfig

	// Maintenance (not persisted in config file)
	Reindex bool
}

// DBConfig holds storage settings.
type DBConfig struct {
	Backend    string `conf:"db.backend"`     // badger, sqlite or memory
	MemTableMB int64  `conf:"db.memtable_mb"` // badger only; bounds one block's write
}

// SourceConfig holds block source settings.
type SourceConfig struct {
	Kind     string        `conf:"source.kind"` // rpc or rest
	URL      string        `conf:"source.url"`
	User     string        `conf:"source.user"`
	Password string        `conf:"source.password"`
	Cookie   string        `conf:"source.cookie"` // path to the node's .cookie file
	Timeout  time.Duration `conf:"source.timeout"`
}

// IndexerConfig holds indexer loop settings.
type IndexerConfig struct {
	Genesis       int64         `conf:"indexer.genesis"` // first height to index
	Poll          time.Duration `conf:"indexer.poll"`
	Retry         time.Duration `conf:"indexer.retry"`
	Confirmations int64         `conf:"indexer.confirmations"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// StatsConfig holds read model settings.
type StatsConfig struct {
	Refresh time.Duration `conf:"stats.refresh"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.utxoindex
//	macOS:   ~/Library/Application Support/UTXOIndex
//	Windows: %APPDATA%\UTXOIndex
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".utxoindex"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "UTXOIndex")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "UTXOIndex")
		}
		return filepath.Join(home, "AppData", "Roaming", "UTXOIndex")
	default:
		return filepath.Join(home, ".utxoindex")
	}
}

// DBDir returns the database directory. Chains share one database and
// are kept apart by key prefix.
func (c *Config) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "utxoindex.conf")
}
