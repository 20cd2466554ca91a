package logging

import (
	"context"
	"log/slog"
	"sync"
)

// Entry is one record kept by a Capture handler.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type captureStore struct {
	mu      sync.Mutex
	entries []Entry
}

// Capture is an in-memory slog.Handler for asserting on log output.
// Handlers derived with WithAttrs share one store.
type Capture struct {
	store *captureStore
	attrs []slog.Attr
	level slog.Level
}

// NewCapture returns a handler that keeps every record at or above level.
func NewCapture(level slog.Level) *Capture {
	return &Capture{store: &captureStore{}, level: level}
}

func (c *Capture) Enabled(_ context.Context, l slog.Level) bool { return l >= c.level }

func (c *Capture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(c.attrs))
	for _, a := range c.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.entries = append(c.store.entries, Entry{Level: r.Level, Message: r.Message, Attrs: attrs})
	return nil
}

func (c *Capture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Capture{
		store: c.store,
		attrs: append(append([]slog.Attr(nil), c.attrs...), attrs...),
		level: c.level,
	}
}

func (c *Capture) WithGroup(string) slog.Handler { return c }

// Entries returns a copy of the records captured so far.
func (c *Capture) Entries() []Entry {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return append([]Entry(nil), c.store.entries...)
}

// Find returns the first entry with msg.
func (c *Capture) Find(msg string) (Entry, bool) {
	for _, e := range c.Entries() {
		if e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}
