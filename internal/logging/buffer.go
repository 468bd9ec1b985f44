package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a single buffered log record, surfaced by /status for recent
// diagnostics without needing to tail the process's stdout/stderr.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer is a fixed-capacity circular buffer of the most recent log
// entries. It implements slog.Handler so it can be attached alongside the
// normal output handler via slog.NewMultiHandler-style composition (here
// done explicitly by callers constructing both handlers).
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	filled   bool
}

// NewBuffer creates a buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &Buffer{entries: make([]Entry, capacity), capacity: capacity}
}

func (b *Buffer) Enabled(context.Context, slog.Level) bool { return true }

func (b *Buffer) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]any)
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	entry := Entry{Time: record.Time, Level: record.Level.String(), Message: record.Message, Attrs: attrs}

	b.mu.Lock()
	b.entries[b.next] = entry
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.filled = true
	}
	b.mu.Unlock()
	return nil
}

func (b *Buffer) WithAttrs([]slog.Attr) slog.Handler { return b }
func (b *Buffer) WithGroup(string) slog.Handler      { return b }

// Recent returns up to n of the most recently buffered entries, oldest
// first.
func (b *Buffer) Recent(n int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []Entry
	if b.filled {
		ordered = append(ordered, b.entries[b.next:]...)
		ordered = append(ordered, b.entries[:b.next]...)
	} else {
		ordered = append(ordered, b.entries[:b.next]...)
	}

	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

// TeeHandler fans a record out to two handlers, used to attach a Buffer
// alongside the primary output handler.
type TeeHandler struct {
	primary slog.Handler
	tee     slog.Handler
}

// NewTeeHandler returns a handler that forwards every record to both
// primary and tee; tee's errors are ignored so buffering never disrupts
// real log output.
func NewTeeHandler(primary, tee slog.Handler) *TeeHandler {
	return &TeeHandler{primary: primary, tee: tee}
}

func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.primary.Enabled(ctx, level)
}

func (t *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	_ = t.tee.Handle(ctx, record.Clone())
	return t.primary.Handle(ctx, record)
}

func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{primary: t.primary.WithAttrs(attrs), tee: t.tee.WithAttrs(attrs)}
}

func (t *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{primary: t.primary.WithGroup(name), tee: t.tee.WithGroup(name)}
}
