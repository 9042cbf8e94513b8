package config

import "time"

// DefaultChain is the chain indexed when none is configured.
const DefaultChain = "luckycoin"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Chain:   DefaultChain,
		DataDir: DefaultDataDir(),
		DB: DBConfig{
			Backend:    "badger",
			MemTableMB: 256,
		},
		Source: SourceConfig{
			Kind:    "rpc",
			URL:     "http://127.0.0.1:19918",
			Timeout: 30 * time.Second,
		},
		Indexer: IndexerConfig{
			Genesis:       0,
			Poll:          500 * time.Millisecond,
			Retry:         5 * time.Second,
			Confirmations: 0,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       3000,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9921",
		},
		Stats: StatsConfig{
			Refresh: time.Minute,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
