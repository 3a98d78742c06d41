// Package logger configures the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options selects the log format and sinks.
type Options struct {
	Format      string // "text" or "json"
	Level       string // debug, info, warn, error
	Output      io.Writer
	SentryDSN   string
	Environment string
	Release     string
}

// ParseLevel maps a config string to a slog level. Unknown values are info.
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

// New builds a logger. Errors and above also go to Sentry when a DSN is
// set. The returned flush func drains buffered Sentry events and is safe to
// call when Sentry is disabled.
func New(opts Options) (*slog.Logger, func(), error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handlers []slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handlers = append(handlers, slog.NewTextHandler(out, ho))
	case "json":
		handlers = append(handlers, slog.NewJSONHandler(out, ho))
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	flush := func() {}
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
			Release:     opts.Release,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init sentry: %w", err)
		}
		handlers = append(handlers, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
		flush = func() { sentry.Flush(2 * time.Second) }
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}
	return slog.New(handler), flush, nil
}

// Init builds a logger and installs it as the slog default.
func Init(opts Options) (*slog.Logger, func(), error) {
	log, flush, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(log)
	return log, flush, nil
}
