package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Chain == "" {
		return fmt.Errorf("chain must not be empty")
	}
	if strings.ContainsAny(cfg.Chain, "/\x00") {
		return fmt.Errorf("chain must not contain '/' or NUL")
	}

	switch cfg.DB.Backend {
	case "badger", "sqlite", "memory":
	default:
		return fmt.Errorf("db.backend must be badger, sqlite, or memory")
	}
	if cfg.DB.MemTableMB < 16 {
		return fmt.Errorf("db.memtable_mb must be at least 16")
	}

	switch cfg.Source.Kind {
	case "rpc", "rest":
	default:
		return fmt.Errorf("source.kind must be rpc or rest")
	}
	if cfg.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if cfg.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}

	if cfg.Indexer.Genesis < 0 {
		return fmt.Errorf("indexer.genesis must not be negative")
	}
	if cfg.Indexer.Poll <= 0 {
		return fmt.Errorf("indexer.poll must be positive")
	}
	if cfg.Indexer.Retry <= 0 {
		return fmt.Errorf("indexer.retry must be positive")
	}
	if cfg.Indexer.Confirmations < 0 {
		return fmt.Errorf("indexer.confirmations must not be negative")
	}

	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	for i, entry := range cfg.RPC.AllowedIPs {
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("rpc.allowed[%d] %q is not an IP or CIDR", i, entry)
		}
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}

	if cfg.Stats.Refresh <= 0 {
		return fmt.Errorf("stats.refresh must be positive")
	}

	return nil
}
