package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/pixel-core"

// New returns a logger that writes to w in the given format ("text" or
// "json") at the given level, and also hands every record to the
// OpenTelemetry log bridge.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	options := &slog.HandlerOptions{Level: lvl}
	var local slog.Handler
	switch format {
	case "", "text":
		local = slog.NewTextHandler(w, options)
	case "json":
		local = slog.NewJSONHandler(w, options)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return slog.New(tee{local, otelslog.NewHandler(scopeName)}), nil
}

// tee sends each record to every handler that is enabled for it.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(tee, len(t))
	for i, h := range t {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (t tee) WithGroup(name string) slog.Handler {
	next := make(tee, len(t))
	for i, h := range t {
		next[i] = h.WithGroup(name)
	}
	return next
}
