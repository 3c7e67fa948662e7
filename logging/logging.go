// Package logging builds the slog loggers used by the engine, the test
// adapter and the CLI.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Format selects the log output format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
	FormatText   Format = "text"
	FormatOff    Format = "off"
)

// ParseFormat parses a format name. The empty string means off.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatOff, nil
	case FormatJSON, FormatPretty, FormatText, FormatOff:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (expected json, pretty, text or off)", s)
	}
}

// ParseLevel parses debug, info, warn or error (any case).
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q: %w", s, err)
	}
	return l, nil
}

// New returns a logger writing format to w at level and above.
func New(format Format, level slog.Level, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	case FormatPretty:
		return slog.New(NewPrettyJSONHandler(w, opts))
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return Discard()
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// PrettyJSONHandler writes each record as an indented JSON object. It is
// meant for humans reading a replay, not for log shippers.
type PrettyJSONHandler struct {
	*slog.JSONHandler
	writer io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string
}

// NewPrettyJSONHandler creates a new pretty JSON handler.
func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyJSONHandler {
	return &PrettyJSONHandler{
		JSONHandler: slog.NewJSONHandler(w, opts),
		writer:      w,
		mu:          &sync.Mutex{},
	}
}

func (h *PrettyJSONHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs()+3)
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = a.Value.Resolve().Any()
		return true
	})

	if !r.Time.IsZero() {
		attrs["time"] = r.Time.Format(time.RFC3339)
	}
	attrs["level"] = r.Level.String()
	attrs["msg"] = r.Message

	prettyJSON, err := json.MarshalIndent(attrs, "", "  ")
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(append(prettyJSON, '\n'))
	return err
}

func (h *PrettyJSONHandler) WithAttrs(as []slog.Attr) slog.Handler {
	next := *h
	next.JSONHandler = h.JSONHandler.WithAttrs(as).(*slog.JSONHandler)
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(as))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range as {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &next
}

// WithGroup flattens groups into dotted keys.
func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.JSONHandler = h.JSONHandler.WithGroup(name).(*slog.JSONHandler)
	next.prefix = h.prefix + name + "."
	return &next
}
