package store

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Flusher serializes saves to a KV so a newer snapshot never lands before an
// older one. Persistence failures are logged and swallowed; in-memory state
// stays authoritative.
type Flusher struct {
	mu sync.Mutex
	kv KV
}

// NewFlusher wraps kv. A nil kv makes every flush a no-op.
func NewFlusher(kv KV) *Flusher {
	return &Flusher{kv: kv}
}

// Flush takes a snapshot and saves it. snapshot is called while the flush
// lock is held, so it must not call back into the Flusher.
func (f *Flusher) Flush(collection string, snapshot func() (map[string]json.RawMessage, error)) {
	if f == nil || f.kv == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := snapshot()
	if err != nil {
		slog.Error("persist snapshot failed", "collection", collection, "err", err)
		return
	}
	if err := f.kv.Save(collection, data); err != nil {
		slog.Error("persist failed", "collection", collection, "err", err)
	}
}
