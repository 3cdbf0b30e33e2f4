package server

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/litka-chat/litka/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Conn is a live client transport handle.
type Conn interface {
	ID() string
	// Send enqueues data without blocking. It returns false when the
	// connection is closed or its queue is full.
	Send(data []byte) bool
	Open() bool
	Close() error
	RemoteAddr() string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn is a gorilla/websocket connection with a bounded send queue drained
// by its own write pump. A full queue closes the connection.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	remote string
	send   chan []byte
	done   chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
}

func newWSConn(ws *websocket.Conn, remote string, buffer int) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		ws:     ws,
		remote: remote,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string         { return c.id }
func (c *wsConn) RemoteAddr() string { return c.remote }
func (c *wsConn) Open() bool         { return !c.closed.Load() }

func (c *wsConn) Send(data []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("send queue full, closing slow consumer", "conn", c.id, "remote", c.remote)
		_ = c.Close()
		return false
	}
}

// Close stops the write pump, which closes the socket and unblocks the read pump.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

// readPump feeds inbound text frames to handle until the socket fails.
func (c *wsConn) readPump(handle func(data []byte)) {
	c.ws.SetReadLimit(protocol.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Debug("read error", "conn", c.id, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("write error", "conn", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn := newWSConn(ws, r.RemoteAddr, s.cfg.SendBuffer)
	s.Connect(conn)
	defer s.Disconnect(conn)

	go conn.writePump()
	conn.readPump(func(data []byte) { s.HandleFrame(conn, data) })
}
