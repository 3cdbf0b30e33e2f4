// Package history keeps the bounded buffer of recent public chat messages.
package history

import (
	"sync"

	"github.com/litka-chat/litka/pkg/model"
)

// DefaultCapacity is the number of messages replayed to joining clients.
const DefaultCapacity = 100

// Buffer is a fixed-capacity FIFO ring. Appends past capacity evict the oldest message.
type Buffer struct {
	mu    sync.RWMutex
	buf   []model.ChatMessage
	start int
	size  int
	total int64
}

// New creates a Buffer. Non-positive capacity uses DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{buf: make([]model.ChatMessage, capacity)}
}

// Append adds a message, evicting the oldest when full.
func (b *Buffer) Append(msg model.ChatMessage) {
	msg.Profile = msg.Profile.Clone()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.total++
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = msg
		b.size++
		return
	}
	b.buf[b.start] = msg
	b.start = (b.start + 1) % len(b.buf)
}

// Snapshot returns the buffered messages, oldest first.
func (b *Buffer) Snapshot() []model.ChatMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.ChatMessage, b.size)
	for i := 0; i < b.size; i++ {
		m := b.buf[(b.start+i)%len(b.buf)]
		m.Profile = m.Profile.Clone()
		out[i] = m
	}
	return out
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Total returns how many messages were ever appended.
func (b *Buffer) Total() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Capacity returns the maximum number of buffered messages.
func (b *Buffer) Capacity() int {
	return len(b.buf)
}
