package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// LogOptions selects where the console logs.
type LogOptions struct {
	// Console receives text records at Level.
	Console io.Writer
	Level   slog.Level
	// File receives every debug record as JSON. Empty disables it.
	File string
}

// Logger returns the logger for c, writing records to stderr. verbose lowers
// the console level to debug.
func (c Config) Logger(verbose bool) (*slog.Logger, func() error) {
	opts := LogOptions{Console: os.Stderr, Level: c.LogLevel, File: c.LogFile}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	return NewLogger(opts)
}

// NewLogger opens the log file of opts, creating its directory, and returns
// the logger with a func that closes the file. A file that cannot be opened
// is reported on the console and skipped.
func NewLogger(opts LogOptions) (*slog.Logger, func() error) {
	noop := func() error { return nil }
	if opts.File == "" {
		return slog.New(consoleHandler(opts.Console, opts.Level)), noop
	}

	f, err := openLogFile(opts.File)
	if err != nil {
		logger := slog.New(consoleHandler(opts.Console, opts.Level))
		logger.Warn("log file unavailable", "file", opts.File, "error", err)
		return logger, noop
	}
	return fanout(opts.Console, f, opts.Level), f.Close
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// consoleHandler omits timestamps; the terminal user sees records as they happen.
func consoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
}

// fanout sends records to the console at level and to file at debug.
func fanout(console, file io.Writer, level slog.Level) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(consoleHandler(console, level), fileHandler))
}
