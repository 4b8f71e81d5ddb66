package log

import (
	"context"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// Entry text is private: only ids, dates and errors may reach a sink.
var defaultSensitiveKeys = []string{
	"title",
	"content",
	"draft",
	"entry",
	"password",
	"passphrase",
	"secret",
	"token",
}

// RedactingHandler masks attributes whose key, compared case-insensitively,
// names journal text or a credential. Groups are walked at any depth and
// LogValuer values are resolved first, so a value cannot smuggle text past
// the check.
type RedactingHandler struct {
	inner slog.Handler
	keys  map[string]struct{}
}

// NewRedactingHandler wraps inner. extraKeys extend the built-in key set.
func NewRedactingHandler(inner slog.Handler, extraKeys ...string) *RedactingHandler {
	keys := make(map[string]struct{}, len(defaultSensitiveKeys)+len(extraKeys))
	for _, key := range defaultSensitiveKeys {
		keys[key] = struct{}{}
	}
	for _, key := range extraKeys {
		keys[strings.ToLower(key)] = struct{}{}
	}
	return &RedactingHandler{inner: inner, keys: keys}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(h.mask(attr))
		return true
	})
	return h.inner.Handle(ctx, masked)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = h.mask(attr)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(masked), keys: h.keys}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), keys: h.keys}
}

func (h *RedactingHandler) mask(attr slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redacted)
	}

	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return slog.Attr{Key: attr.Key, Value: value}
	}
	members := value.Group()
	masked := make([]slog.Attr, len(members))
	for i, member := range members {
		masked[i] = h.mask(member)
	}
	return slog.Attr{Key: attr.Key, Value: slog.GroupValue(masked...)}
}
