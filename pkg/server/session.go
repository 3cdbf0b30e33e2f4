package server

import (
	"sort"
	"sync"
	"time"

	"github.com/litka-chat/litka/pkg/model"
)

type sessionEntry struct {
	conn    Conn
	session model.Session
	seq     uint64
}

// Registry binds live connections to authenticated identities.
// A username may hold several connections at once; directed deliveries
// reach all of them.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry // conn ID -> entry
	seq     uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*sessionEntry),
	}
}

// Register binds conn to username. Re-registering a connection replaces
// its previous identity; re-registering the same identity keeps its joined
// state.
func (r *Registry) Register(conn Conn, username, token string) model.Session {
	sess := model.Session{
		ConnID:      conn.ID(),
		Username:    username,
		Token:       token,
		ConnectedAt: time.Now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.entries[conn.ID()]; ok && prev.session.Username == username {
		sess.Joined = prev.session.Joined
	}
	r.seq++
	r.entries[conn.ID()] = &sessionEntry{conn: conn, session: sess, seq: r.seq}
	return sess
}

// Unregister removes conn and returns the session it carried.
func (r *Registry) Unregister(conn Conn) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[conn.ID()]
	if !ok {
		return model.Session{}, false
	}
	delete(r.entries, conn.ID())
	return e.session, true
}

// Session returns a snapshot of the session bound to conn.
func (r *Registry) Session(conn Conn) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[conn.ID()]
	if !ok {
		return model.Session{}, false
	}
	return e.session, true
}

// MarkJoined flags the session as joined and reports whether it already was.
func (r *Registry) MarkJoined(conn Conn) (wasJoined bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found := r.entries[conn.ID()]
	if !found {
		return false, false
	}
	wasJoined = e.session.Joined
	e.session.Joined = true
	return wasJoined, true
}

// Resolve returns the oldest live connection of username.
func (r *Registry) Resolve(username string) (Conn, bool) {
	conns := r.ResolveAll(username)
	if len(conns) == 0 {
		return nil, false
	}
	return conns[0], true
}

// ResolveAll returns every connection bound to username, oldest first.
func (r *Registry) ResolveAll(username string) []Conn {
	r.mu.RLock()
	matches := make([]*sessionEntry, 0, 1)
	for _, e := range r.entries {
		if e.session.Username == username {
			matches = append(matches, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].seq < matches[j].seq
	})
	out := make([]Conn, len(matches))
	for i, e := range matches {
		out[i] = e.conn
	}
	return out
}

// JoinedCount returns how many of username's connections have joined the chat.
func (r *Registry) JoinedCount(username string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.session.Username == username && e.session.Joined {
			n++
		}
	}
	return n
}

// Online reports whether username has at least one live connection.
func (r *Registry) Online(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.session.Username == username {
			return true
		}
	}
	return false
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All returns all active sessions (snapshot).
func (r *Registry) All() []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]model.Session, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.session)
	}
	return result
}

// Conns returns all registered connections (snapshot).
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Conn, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.conn)
	}
	return result
}
