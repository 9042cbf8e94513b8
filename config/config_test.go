package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFile_Parse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxoindex.conf")
	content := `# comment
chain = dogecoin
source.url = "http://10.0.0.5:22555"
source.cookie = '/home/doge/.dogecoin/.cookie'

indexer.poll = 2s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if values["chain"] != "dogecoin" {
		t.Errorf("chain = %q", values["chain"])
	}
	if values["source.url"] != "http://10.0.0.5:22555" {
		t.Errorf("source.url = %q (quotes not stripped?)", values["source.url"])
	}
	if values["source.cookie"] != "/home/doge/.dogecoin/.cookie" {
		t.Errorf("source.cookie = %q", values["source.cookie"])
	}
	if len(values) != 4 {
		t.Errorf("values = %d, want 4", len(values))
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want empty", values)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("chain\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for line without '='")
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{
		"chain":                 "dogecoin",
		"db.backend":            "SQLite",
		"db.memtable_mb":        "512",
		"source.kind":           "rest",
		"source.timeout":        "10s",
		"indexer.genesis":       "1000",
		"indexer.confirmations": "6",
		"indexer.retry":         "1m",
		"rpc.enabled":           "no",
		"rpc.allowed":           "127.0.0.1, 10.0.0.0/8",
		"metrics":               "on",
		"stats.refresh":         "30s",
		"log.json":              "true",
		"unknown.key":           "ignored",
	})
	if err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Chain != "dogecoin" {
		t.Errorf("Chain = %q", cfg.Chain)
	}
	if cfg.DB.Backend != "sqlite" || cfg.DB.MemTableMB != 512 {
		t.Errorf("DB = %+v", cfg.DB)
	}
	if cfg.Source.Kind != "rest" || cfg.Source.Timeout != 10*time.Second {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Indexer.Genesis != 1000 || cfg.Indexer.Confirmations != 6 || cfg.Indexer.Retry != time.Minute {
		t.Errorf("Indexer = %+v", cfg.Indexer)
	}
	if cfg.RPC.Enabled {
		t.Error("RPC should be disabled")
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("AllowedIPs = %v", cfg.RPC.AllowedIPs)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
	if cfg.Stats.Refresh != 30*time.Second {
		t.Errorf("Stats.Refresh = %v", cfg.Stats.Refresh)
	}
	if !cfg.Log.JSON {
		t.Error("log.json should be true")
	}
}

func TestApplyFileConfig_BadValue(t *testing.T) {
	for key, value := range map[string]string{
		"indexer.poll":    "fast",
		"indexer.genesis": "ten",
		"rpc.port":        "http",
	} {
		cfg := Default()
		if err := ApplyFileConfig(cfg, map[string]string{key: value}); err == nil {
			t.Errorf("%s = %q: expected error", key, value)
		}
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	f, err := parseFlags([]string{
		"--chain=dogecoin",
		"--db", "memory",
		"--db-memtable=64",
		"--genesis=0",
		"--confirmations=3",
		"--poll=1s",
		"--rpc=false",
		"--metrics",
		"--reindex",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	cfg := Default()
	cfg.Indexer.Genesis = 500
	ApplyFlags(cfg, f)

	if cfg.Chain != "dogecoin" || cfg.DB.Backend != "memory" || cfg.DB.MemTableMB != 64 {
		t.Errorf("core = %q %+v", cfg.Chain, cfg.DB)
	}
	if cfg.Indexer.Genesis != 0 {
		t.Errorf("explicit --genesis=0 not applied: %d", cfg.Indexer.Genesis)
	}
	if cfg.Indexer.Confirmations != 3 || cfg.Indexer.Poll != time.Second {
		t.Errorf("Indexer = %+v", cfg.Indexer)
	}
	if cfg.RPC.Enabled {
		t.Error("--rpc=false not applied")
	}
	if !cfg.Metrics.Enabled || !cfg.Reindex {
		t.Error("--metrics / --reindex not applied")
	}
}

func TestParseFlags_UnsetLeavesConfig(t *testing.T) {
	f, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	cfg := Default()
	cfg.Indexer.Genesis = 500
	cfg.RPC.Enabled = false
	ApplyFlags(cfg, f)

	if cfg.Indexer.Genesis != 500 {
		t.Errorf("Genesis = %d, want 500", cfg.Indexer.Genesis)
	}
	if cfg.RPC.Enabled {
		t.Error("unset --rpc should not override config")
	}
}

func TestParseFlags_PositionalStopsParsing(t *testing.T) {
	if _, err := parseFlags([]string{"--metrics", "extra", "--reindex"}, io.Discard); err == nil {
		t.Fatal("expected error for flag after positional argument")
	}
}

func TestLoad_CreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(&Flags{DataDir: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chain != DefaultChain {
		t.Errorf("Chain = %q", cfg.Chain)
	}

	data, err := os.ReadFile(filepath.Join(dir, "utxoindex.conf"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "source.url = http://127.0.0.1:19918") {
		t.Error("default config missing source.url")
	}
	if _, err := os.Stat(cfg.DBDir()); err != nil {
		t.Errorf("db dir not created: %v", err)
	}

	// The written file must round-trip to the defaults.
	values, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		t.Fatal(err)
	}
	again := Default()
	again.DataDir = dir
	if err := ApplyFileConfig(again, values); err != nil {
		t.Fatalf("apply written config: %v", err)
	}
	if err := Validate(again); err != nil {
		t.Fatalf("written config invalid: %v", err)
	}
	if again.Indexer.Poll != 500*time.Millisecond || again.Stats.Refresh != time.Minute {
		t.Errorf("round trip changed durations: %+v %+v", again.Indexer, again.Stats)
	}
}

func TestLoad_FlagsBeatFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "custom.conf")
	if err := os.WriteFile(conf, []byte("chain = dogecoin\nrpc.port = 4000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(&Flags{DataDir: dir, Config: conf, RPCPort: 5000})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chain != "dogecoin" {
		t.Errorf("Chain = %q, want dogecoin from file", cfg.Chain)
	}
	if cfg.RPC.Port != 5000 {
		t.Errorf("RPC.Port = %d, want 5000 from flag", cfg.RPC.Port)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty chain", func(c *Config) { c.Chain = "" }},
		{"slash in chain", func(c *Config) { c.Chain = "a/b" }},
		{"backend", func(c *Config) { c.DB.Backend = "postgres" }},
		{"memtable", func(c *Config) { c.DB.MemTableMB = 4 }},
		{"source kind", func(c *Config) { c.Source.Kind = "zmq" }},
		{"source url", func(c *Config) { c.Source.URL = "" }},
		{"timeout", func(c *Config) { c.Source.Timeout = 0 }},
		{"genesis", func(c *Config) { c.Indexer.Genesis = -1 }},
		{"poll", func(c *Config) { c.Indexer.Poll = 0 }},
		{"retry", func(c *Config) { c.Indexer.Retry = -time.Second }},
		{"confirmations", func(c *Config) { c.Indexer.Confirmations = -2 }},
		{"rpc port", func(c *Config) { c.RPC.Port = 70000 }},
		{"rpc allowed", func(c *Config) { c.RPC.AllowedIPs = []string{"localhost"} }},
		{"metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "9921" }},
		{"stats refresh", func(c *Config) { c.Stats.Refresh = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("nil config should be invalid")
	}
}
