// Package logging builds the slog.Logger shared by the devtools binaries.
//
// Callers must not log secrets. Credentials are logged as presence flags:
//
//	logger.Info("credentials updated", "token_present", token != "")
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/scrypster/storyblok-devtools/internal/config"
)

// New returns a logger writing to stderr using cfg's level and format.
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit destination. Format "auto" writes
// text to a terminal and JSON to anything else.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if useJSON(cfg.Format, w) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func useJSON(format string, w io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return true
	case "auto":
		f, ok := w.(*os.File)
		return !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	default:
		return false
	}
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used by tests and as the
// default when a component is built without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
