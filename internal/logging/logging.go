// Package logging builds the slog loggers used across mcpstream.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Handler selects the output format.
type Handler int

const (
	DevHandler Handler = iota
	JSONHandler
	TextHandler
)

// ParseHandler maps "dev", "json" and "text" to a Handler.
func ParseHandler(s string) (Handler, error) {
	switch strings.ToLower(s) {
	case "", "dev":
		return DevHandler, nil
	case "json":
		return JSONHandler, nil
	case "txt", "text":
		return TextHandler, nil
	}
	return DevHandler, fmt.Errorf("unknown log handler %q", s)
}

// ParseLevel maps debug/info/warn/error (case-insensitive) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelWarn, fmt.Errorf("unknown log level %q", s)
}

type Opt func(o *opts)

type opts struct {
	writer  io.Writer
	level   slog.Level
	handler Handler
	noColor bool
}

func WithLevel(lvl slog.Level) Opt {
	return func(o *opts) {
		o.level = lvl
	}
}

func WithWriter(w io.Writer) Opt {
	return func(o *opts) {
		o.writer = w
	}
}

func WithHandler(h Handler) Opt {
	return func(o *opts) {
		o.handler = h
	}
}

// WithNoColor disables ANSI colors in the dev handler.
func WithNoColor() Opt {
	return func(o *opts) {
		o.noColor = true
	}
}

// New builds a logger. Without options it writes colored dev output at
// warn level to stderr.
func New(options ...Opt) *slog.Logger {
	o := &opts{
		writer:  os.Stderr,
		level:   slog.LevelWarn,
		handler: DevHandler,
	}
	for _, apply := range options {
		apply(o)
	}

	hopts := &slog.HandlerOptions{Level: o.level}

	switch o.handler {
	case JSONHandler:
		return slog.New(slog.NewJSONHandler(o.writer, hopts))
	case TextHandler:
		return slog.New(slog.NewTextHandler(o.writer, hopts))
	default:
		return slog.New(tint.NewHandler(o.writer, &tint.Options{
			Level:      o.level,
			TimeFormat: "[15:04:05.000]", // millisecond
			NoColor:    o.noColor,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey && len(groups) == 0 {
					if lvl, ok := a.Value.Any().(slog.Level); ok {
						// keep default color for warn and error
						switch lvl {
						case slog.LevelDebug:
							return tint.Attr(3, slog.String(a.Key, "DBG"))
						case slog.LevelInfo:
							return tint.Attr(14, slog.String(a.Key, "INF"))
						}
					}
				}
				return a
			},
		}))
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a discarding logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Discard()
}
