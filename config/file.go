package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	// Core
	case "chain":
		cfg.Chain = value
	case "datadir":
		cfg.DataDir = value

	// Storage
	case "db.backend":
		cfg.DB.Backend = strings.ToLower(value)
	case "db.memtable_mb":
		cfg.DB.MemTableMB, err = strconv.ParseInt(value, 10, 64)

	// Source
	case "source.kind":
		cfg.Source.Kind = strings.ToLower(value)
	case "source.url":
		cfg.Source.URL = value
	case "source.user":
		cfg.Source.User = value
	case "source.password":
		cfg.Source.Password = value
	case "source.cookie":
		cfg.Source.Cookie = value
	case "source.timeout":
		cfg.Source.Timeout, err = time.ParseDuration(value)

	// Indexer
	case "indexer.genesis":
		cfg.Indexer.Genesis, err = strconv.ParseInt(value, 10, 64)
	case "indexer.poll":
		cfg.Indexer.Poll, err = time.ParseDuration(value)
	case "indexer.retry":
		cfg.Indexer.Retry, err = time.ParseDuration(value)
	case "indexer.confirmations":
		cfg.Indexer.Confirmations, err = strconv.ParseInt(value, 10, 64)

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		cfg.RPC.Port, err = strconv.Atoi(value)
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Stats
	case "stats.refresh":
		cfg.Stats.Refresh, err = time.ParseDuration(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	d := Default()
	content := `# UTXO Indexer Configuration

# Chain name. Each chain's data is kept under its own key prefix.
chain = ` + d.Chain + `

# Data directory (default: ~/.utxoindex)
# datadir = ~/.utxoindex

# ============================================================================
# Storage
# ============================================================================

# badger (default), sqlite or memory
db.backend = ` + d.DB.Backend + `

# Badger memtable size in MiB. A block must fit in about 15% of it to be
# written in one transaction; larger blocks are split.
db.memtable_mb = ` + strconv.FormatInt(d.DB.MemTableMB, 10) + `

# ============================================================================
# Block Source
# ============================================================================

# rpc: the node's JSON-RPC (getblockhash + getblock)
# rest: a block proxy serving GET <url>/getblock/<height>
source.kind = ` + d.Source.Kind + `
source.url = ` + d.Source.URL + `
# source.user =
# source.password =
# Node cookie file, used instead of user/password when set
# source.cookie = ~/.luckycoin/.cookie
source.timeout = ` + d.Source.Timeout.String() + `

# ============================================================================
# Indexer
# ============================================================================

# First block height to index
indexer.genesis = ` + strconv.FormatInt(d.Indexer.Genesis, 10) + `
# Wait between polls once caught up with the source
indexer.poll = ` + d.Indexer.Poll.String() + `
# Wait before retrying a failed block
indexer.retry = ` + d.Indexer.Retry.String() + `
# Stay this many blocks behind the source tip (0 = index up to the tip)
indexer.confirmations = ` + strconv.FormatInt(d.Indexer.Confirmations, 10) + `

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = ` + d.RPC.Addr + `
rpc.port = ` + strconv.Itoa(d.RPC.Port) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# ============================================================================
# Metrics
# ============================================================================

metrics.enabled = false
metrics.addr = ` + d.Metrics.Addr + `

# ============================================================================
# Supply / Holders
# ============================================================================

stats.refresh = ` + d.Stats.Refresh.String() + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
