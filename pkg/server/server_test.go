package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/litka-chat/litka/pkg/store"
)

var connSeq atomic.Int64

// fakeConn records every frame queued on it. A positive capacity makes it
// behave like a full send queue once reached.
type fakeConn struct {
	id       string
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	capacity int
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{id: fmt.Sprintf("%s-%d", name, connSeq.Add(1))}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:0" }

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		c.closed = true
		return false
	}
	c.frames = append(c.frames, data)
	return true
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// events decodes every recorded frame.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var ev map[string]any
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("decode frame %s: %v", f, err)
		}
		out = append(out, ev)
	}
	return out
}

// ofType returns recorded events of one type.
func (c *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, ev := range c.events(t) {
		out = append(out, ev["type"].(string))
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// lastReply returns the message of the most recent custom_response, or "".
func (c *fakeConn) lastReply(t *testing.T) string {
	t.Helper()
	replies := c.ofType(t, "custom_response")
	if len(replies) == 0 {
		return ""
	}
	return replies[len(replies)-1]["message"].(string)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PrivilegedUsers = []string{"admin"}
	cfg.RateLimit.MessagesPerSecond = 0
	cfg.RateLimit.HTTPPerSecond = 0
	cfg.MetricsLogInterval = 0
	cfg.SweepInterval = 0
	return cfg
}

func newTestServerWith(t *testing.T, cfg Config, kv store.KV) (*Server, *testClock) {
	t.Helper()
	clk := newTestClock()
	srv, err := New(cfg, Dependencies{Store: kv, Now: clk.Now})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, clk
}

func newTestServer(t *testing.T) (*Server, *testClock) {
	t.Helper()
	return newTestServerWith(t, testConfig(), store.NewMemory())
}

func send(t *testing.T, srv *Server, conn Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	srv.HandleFrame(conn, data)
}

func say(t *testing.T, srv *Server, conn Conn, text string) {
	t.Helper()
	send(t, srv, conn, map[string]string{"type": "message", "message": text})
}

func custom(t *testing.T, srv *Server, conn Conn, command string, args ...string) {
	t.Helper()
	if args == nil {
		args = []string{}
	}
	send(t, srv, conn, map[string]any{"type": "custom", "command": command, "args": args})
}

// connectAs opens a connection and registers (or logs in) username.
func connectAs(t *testing.T, srv *Server, username string) *fakeConn {
	t.Helper()
	conn := newFakeConn(username)
	srv.Connect(conn)
	if srv.Accounts().Exists(username) {
		send(t, srv, conn, map[string]string{"type": "login", "loginUsername": username, "loginPassword": "pw-" + username})
	} else {
		send(t, srv, conn, map[string]string{"type": "register", "regUsername": username, "regPassword": "pw-" + username})
	}
	if got := conn.ofType(t, "auth_success"); len(got) != 1 {
		t.Fatalf("connectAs(%s): want auth_success, got %v", username, conn.types(t))
	}
	return conn
}

// joinAs connects, authenticates and joins, then clears recorded frames.
func joinAs(t *testing.T, srv *Server, username string) *fakeConn {
	t.Helper()
	conn := connectAs(t, srv, username)
	send(t, srv, conn, map[string]string{"type": "join"})
	conn.reset()
	return conn
}

func resetAll(conns ...*fakeConn) {
	for _, c := range conns {
		c.reset()
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(testConfig(), Dependencies{}); err == nil {
		t.Fatal("New: expected error without store")
	}
}
