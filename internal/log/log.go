// Package log provides structured, colored logging for the indexer.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jrick/logrotate/rotator"
	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Indexer zerolog.Logger
	RPC     zerolog.Logger
	Stats   zerolog.Logger
	Node    zerolog.Logger
)

// Log file rotation: roll at 10 MB, keep 3 old files.
const (
	rotateThresholdKB = 10 * 1024
	rotateMaxRolls    = 3
)

// fileRotator is the open log file sink, if any.
var fileRotator *rotator.Rotator

func init() {
	// Default to colored console output
	Logger = NewConsoleLogger(os.Stdout, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and a rotated file (always JSON).
func Init(level string, jsonOutput bool, file string) error {
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		r, err := rotator.New(file, rotateThresholdKB, false, rotateMaxRolls)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		Close()
		fileRotator = r

		// Console writer (stdout): colored or JSON per flag.
		var consoleWriter io.Writer
		if jsonOutput {
			consoleWriter = os.Stdout
		} else {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: "15:04:05",
			}
		}

		// Rotator writes are not goroutine safe.
		multi := zerolog.MultiLevelWriter(consoleWriter, zerolog.SyncWriter(r))
		Logger = NewJSONLogger(multi, level)
	} else if jsonOutput {
		Logger = NewJSONLogger(os.Stdout, level)
	} else {
		Logger = NewConsoleLogger(os.Stdout, level)
	}

	initComponentLoggers()
	return nil
}

// Close flushes and closes the log file, if one is open. Later log lines
// go to the console only.
func Close() error {
	if fileRotator == nil {
		return nil
	}
	err := fileRotator.Close()
	fileRotator = nil
	Logger = NewConsoleLogger(os.Stdout, Logger.GetLevel().String())
	initComponentLoggers()
	return err
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
	return zerolog.New(output).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a string level to zerolog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// initComponentLoggers initializes loggers for each component.
func initComponentLoggers() {
	Indexer = WithComponent("indexer")
	RPC = WithComponent("rpc")
	Stats = WithComponent("stats")
	Node = WithComponent("node")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Benchmark helper for timing operations.
func Benchmark(name string) func() {
	start := time.Now()
	return func() {
		Logger.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}
