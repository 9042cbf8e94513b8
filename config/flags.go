package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is the indexer release reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Chain   string
	DataDir string
	Config  string
	Reindex bool

	// Storage
	DBBackend  string
	MemTableMB int64

	// Source
	SourceKind     string
	SourceURL      string
	SourceUser     string
	SourcePassword string
	SourceCookie   string
	SourceTimeout  time.Duration

	// Indexer
	Genesis       int64
	Poll          time.Duration
	Retry         time.Duration
	Confirmations int64

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Metrics
	Metrics     bool
	MetricsAddr string

	// Stats
	StatsRefresh time.Duration

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetGenesis       bool
	SetConfirmations bool
	SetMemTableMB    bool
	SetRPC           bool
	SetMetrics       bool
	SetLogJSON       bool
}

// ParseFlags parses the process's command-line flags, exiting on error.
func ParseFlags() *Flags {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

func parseFlags(args []string, errOut io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("utxoindexd", flag.ContinueOnError)
	fs.SetOutput(errOut)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Chain, "chain", "", "Chain name")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.BoolVar(&f.Reindex, "reindex", false, "Delete this chain's index and replay from the genesis height")

	// Storage
	fs.StringVar(&f.DBBackend, "db", "", "Database backend (badger, sqlite, memory)")
	fs.Int64Var(&f.MemTableMB, "db-memtable", 0, "Badger memtable size in MiB")

	// Source
	fs.StringVar(&f.SourceKind, "source", "", "Block source kind (rpc, rest)")
	fs.StringVar(&f.SourceURL, "source-url", "", "Block source URL")
	fs.StringVar(&f.SourceUser, "source-user", "", "Node RPC user")
	fs.StringVar(&f.SourcePassword, "source-password", "", "Node RPC password")
	fs.StringVar(&f.SourceCookie, "source-cookie", "", "Node .cookie file path")
	fs.DurationVar(&f.SourceTimeout, "source-timeout", 0, "Block source request timeout")

	// Indexer
	fs.Int64Var(&f.Genesis, "genesis", 0, "First block height to index")
	fs.DurationVar(&f.Poll, "poll", 0, "Wait between polls once caught up")
	fs.DurationVar(&f.Retry, "retry", 0, "Wait before retrying a failed block")
	fs.Int64Var(&f.Confirmations, "confirmations", 0, "Blocks to stay behind the source tip")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins for RPC (comma-separated)")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", false, "Enable Prometheus metrics endpoint")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Metrics listen address (host:port)")

	// Stats
	fs.DurationVar(&f.StatsRefresh, "stats-refresh", 0, "Supply and holders refresh interval")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage(errOut)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetGenesis = isFlagSet(fs, "genesis")
	f.SetConfirmations = isFlagSet(fs, "confirmations")
	f.SetMemTableMB = isFlagSet(fs, "db-memtable")
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Chain != "" {
		cfg.Chain = f.Chain
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Reindex {
		cfg.Reindex = true
	}

	// Storage
	if f.DBBackend != "" {
		cfg.DB.Backend = strings.ToLower(f.DBBackend)
	}
	if f.SetMemTableMB {
		cfg.DB.MemTableMB = f.MemTableMB
	}

	// Source
	if f.SourceKind != "" {
		cfg.Source.Kind = strings.ToLower(f.SourceKind)
	}
	if f.SourceURL != "" {
		cfg.Source.URL = f.SourceURL
	}
	if f.SourceUser != "" {
		cfg.Source.User = f.SourceUser
	}
	if f.SourcePassword != "" {
		cfg.Source.Password = f.SourcePassword
	}
	if f.SourceCookie != "" {
		cfg.Source.Cookie = f.SourceCookie
	}
	if f.SourceTimeout != 0 {
		cfg.Source.Timeout = f.SourceTimeout
	}

	// Indexer
	if f.SetGenesis {
		cfg.Indexer.Genesis = f.Genesis
	}
	if f.Poll != 0 {
		cfg.Indexer.Poll = f.Poll
	}
	if f.Retry != 0 {
		cfg.Indexer.Retry = f.Retry
	}
	if f.SetConfirmations {
		cfg.Indexer.Confirmations = f.Confirmations
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Stats
	if f.StatsRefresh != 0 {
		cfg.Stats.Refresh = f.StatsRefresh
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage(w io.Writer) {
	usage := `UTXO Indexer - replays blocks from a node into a queryable UTXO set

Usage:
  utxoindexd [options]
  utxoindexd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --chain         Chain name (default: luckycoin)
  --datadir       Data directory (default: ~/.utxoindex)
  --config, -c    Config file path (default: <datadir>/utxoindex.conf)
  --reindex       Delete this chain's index and replay from --genesis
  --db            Database backend: badger (default), sqlite, memory
  --db-memtable   Badger memtable size in MiB (default: 256)

Source Options:
  --source           Block source: rpc (default) or rest
  --source-url       Node RPC or block proxy URL (default: http://127.0.0.1:19918)
  --source-user      Node RPC user
  --source-password  Node RPC password
  --source-cookie    Node .cookie file (overrides user/password)
  --source-timeout   Request timeout (default: 30s)

Indexer Options:
  --genesis        First block height to index (default: 0)
  --poll           Wait between polls once caught up (default: 500ms)
  --retry          Wait before retrying a failed block (default: 5s)
  --confirmations  Blocks to stay behind the source tip (default: 0)

RPC Options:
  --rpc           Enable RPC server (default: true)
  --rpc-addr      RPC listen address (default: 127.0.0.1)
  --rpc-port      RPC port (default: 3000)
  --rpc-allowed   Allowed IPs for RPC (comma-separated)
  --rpc-cors      Allowed CORS origins for RPC (comma-separated)

Metrics Options:
  --metrics       Enable Prometheus /metrics endpoint
  --metrics-addr  Metrics listen address (default: 127.0.0.1:9921)
  --stats-refresh Supply and holders refresh interval (default: 1m)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/utxoindex.log)
  --log-json      Output logs as JSON

Examples:
  # Index a local node using its cookie
  utxoindexd --source-cookie=~/.luckycoin/.cookie

  # Index through a block proxy
  utxoindexd --source=rest --source-url=http://127.0.0.1:9920

  # Start over from height 0
  utxoindexd --reindex
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("utxoindexd version " + Version)
		os.Exit(0)
	}

	cfg, err := load(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

func load(flags *Flags) (*Config, error) {
	cfg := Default()

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.DBDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
