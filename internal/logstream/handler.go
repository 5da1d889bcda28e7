// ABOUTME: slog.Handler that tees records to a Broadcaster as rendered lines
// ABOUTME: Delegates level filtering and real output to the wrapped handler

package logstream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Handler publishes every record it handles and then passes it on.
type Handler struct {
	next   slog.Handler
	stream *Broadcaster
	attrs  string // pre-rendered " k=v" pairs from WithAttrs
	group  string // dotted group prefix from WithGroup
}

// NewHandler wraps next so its records are also published on stream.
func NewHandler(next slog.Handler, stream *Broadcaster) *Handler {
	return &Handler{next: next, stream: stream}
}

// Enabled reports whether the wrapped handler wants records at level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle publishes the rendered record and forwards it.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})

	h.stream.Publish(Line{Time: r.Time, Level: r.Level, Text: b.String()})
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler that renders attrs on every line.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	return &Handler{next: h.next.WithAttrs(attrs), stream: h.stream, attrs: b.String(), group: h.group}
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{next: h.next.WithGroup(name), stream: h.stream, attrs: h.attrs, group: h.group + name + "."}
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, p, ga)
		}
		return
	}

	val := a.Value.String()
	if strings.ContainsAny(val, " \"=") {
		val = fmt.Sprintf("%q", val)
	}
	fmt.Fprintf(b, " %s%s=%s", prefix, a.Key, val)
}
