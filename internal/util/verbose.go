package util

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
)

// InitLogger initializes the global slog logger with appropriate level
func InitLogger(verbose bool) {
	InitLoggerWithOutput(os.Stdout, verbose)
}

// InitLoggerWithOutput initializes the global logger writing to w
func InitLoggerWithOutput(w io.Writer, verbose bool) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo, // Default level
	}

	if verbose {
		opts.Level = slog.LevelDebug
	}

	l := slog.New(slog.NewTextHandler(w, opts))

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	slog.SetDefault(l)
}

// GetLogger returns the configured logger instance
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		// Not initialized yet; honor --verbose from the command line
		InitLogger(IsVerbose())
		return GetLogger()
	}
	return l
}

// IsVerbose checks if verbose mode is enabled by looking at command line arguments
func IsVerbose() bool {
	for _, arg := range os.Args {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}
