// Package log provides structured logging utilities.
package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	File    string    // optional path to an append-only log file teed with Output
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry
}

var (
	mu         sync.Mutex
	base       zerolog.Logger
	configured bool
	logFile    *os.File
)

// Configure (re)builds the global zerolog logger. The daemon calls it once
// with safe defaults before the config is loaded and again afterwards, so a
// later call must replace the writers, not keep the first set. The level may
// also be adjusted on its own via SetLevel for config hot reload.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	mu.Lock()
	defer mu.Unlock()
	rebuild(cfg)
}

// rebuild swaps the base logger under mu, closing the previous log file once
// the new one is in place.
func rebuild(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}
	var f *os.File
	if cfg.File != "" {
		if f = openLogFile(cfg.File); f != nil {
			writer = zerolog.MultiLevelWriter(writer, f)
		}
	}

	service := cfg.Service
	if service == "" {
		service = "safetyscribe"
	}

	ctx := zerolog.New(writer).With().
		Timestamp().
		Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	base = ctx.Logger()
	configured = true

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
}

// openLogFile opens the log file for appending, creating parent directories
// as needed. A failure is non-fatal: the device keeps logging to stdout.
func openLogFile(path string) *os.File {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil
	}
	return f
}

func logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !configured {
		rebuild(Config{})
	}
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// SetLevel adjusts the global log level at runtime (config hot reload).
func SetLevel(level string) {
	if parsed, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(parsed)
	}
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}
