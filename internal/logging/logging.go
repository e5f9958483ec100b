// Package logging builds the crawler's slog logger on slog-logfilter.
//
// Output is text on a terminal and JSON otherwise (LOG_FORMAT overrides).
// The crawl run ID and the jurisdiction unit travel in the context and are
// attached to records as run_id and unit, where logfilter rules can match
// them.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	logfilter "github.com/jmylchreest/slog-logfilter"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

const (
	// RunIDKey is the context key for the crawl run ID.
	RunIDKey ContextKey = "log_run_id"
	// UnitKey is the context key for the jurisdiction unit being processed.
	UnitKey ContextKey = "log_unit"
)

// contextFields maps context keys to the attribute names they log under.
var contextFields = []struct {
	key  ContextKey
	attr string
}{
	{RunIDKey, "run_id"},
	{UnitKey, "unit"},
}

// WithRunID tags ctx with the crawl run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithUnit tags ctx with a jurisdiction unit label such as "22/8/1280004".
func WithUnit(ctx context.Context, unit string) context.Context {
	return context.WithValue(ctx, UnitKey, unit)
}

func value(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// FromContext returns logger with the context's run ID and unit attached.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	var attrs []any
	for _, f := range contextFields {
		if v := value(ctx, f.key); v != "" {
			attrs = append(attrs, f.attr, v)
		}
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

// Setup builds the process logger at level and makes it the slog default.
// verbose forces debug.
func Setup(level string, verbose bool) *slog.Logger {
	lvl := parseLogLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}

	for _, f := range contextFields {
		logfilter.RegisterContextExtractor(f.attr, func(ctx context.Context) (string, bool) {
			v := value(ctx, f.key)
			return v, v != ""
		})
	}

	logger := logfilter.New(
		logfilter.WithLevel(lvl),
		logfilter.WithFormat(outputFormat(os.Getenv("LOG_FORMAT"), isatty(os.Stderr))),
		logfilter.WithOutput(os.Stderr),
		logfilter.WithSource(true),
	)
	slog.SetDefault(logger)
	return logger
}

func outputFormat(env string, tty bool) string {
	switch {
	case env == "text" || env == "json":
		return env
	case tty:
		return "text"
	default:
		return "json"
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
