// Package client implements a Litka chat client over WebSocket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/litka-chat/litka/pkg/model"
	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

const writeWait = 10 * time.Second

// Event is any server-to-client message. Fields not used by Type are zero.
type Event struct {
	Type         string              `json:"type"`
	Username     string              `json:"username,omitempty"`
	SessionToken string              `json:"sessionToken,omitempty"`
	Message      string              `json:"message,omitempty"`
	Messages     []model.ChatMessage `json:"messages,omitempty"`
	Profile      *model.Profile      `json:"profile,omitempty"`
	SpecialRank  string              `json:"specialRank,omitempty"`
	PrefixColor  model.Color         `json:"prefixColor,omitempty"`
	Mention      string              `json:"mention,omitempty"`
	Count        int                 `json:"count,omitempty"`
	From         string              `json:"from,omitempty"`
	To           string              `json:"to,omitempty"`
	Timestamp    int64               `json:"timestamp,omitempty"`
}

// EventHandler is a callback for incoming events.
type EventHandler func(ev Event)

// Client manages one WebSocket connection to a Litka server.
type Client struct {
	conn    *websocket.Conn
	mu      sync.Mutex // serializes writes
	handler EventHandler
	done    chan struct{}
}

// Dial connects to a server WebSocket URL such as ws://host:3000/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// SetEventHandler sets the callback for incoming events. It must be called
// before StartReceiving.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Send writes one JSON message.
func (c *Client) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("client: marshal: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Register creates an account and returns the session token.
func (c *Client) Register(username, password string) (string, error) {
	return c.authenticate(map[string]string{
		"type":        pb.KindRegister,
		"regUsername": username,
		"regPassword": password,
	})
}

// Login authenticates an existing account and returns the session token.
func (c *Client) Login(username, password string) (string, error) {
	return c.authenticate(map[string]string{
		"type":          pb.KindLogin,
		"loginUsername": username,
		"loginPassword": password,
	})
}

// Resume re-authenticates with a token from an earlier login.
func (c *Client) Resume(token string) (string, error) {
	return c.authenticate(map[string]string{
		"type":         pb.KindResume,
		"sessionToken": token,
	})
}

// authenticate sends req and waits for the auth reply. Other events that
// arrive first are handed to the event handler.
func (c *Client) authenticate(req map[string]string) (string, error) {
	if err := c.Send(req); err != nil {
		return "", fmt.Errorf("client: send auth: %w", err)
	}
	for {
		ev, err := c.ReadEvent()
		if err != nil {
			return "", fmt.Errorf("client: read auth response: %w", err)
		}
		switch ev.Type {
		case pb.TypeAuthSuccess:
			return ev.SessionToken, nil
		case pb.TypeAuthError:
			return "", fmt.Errorf("auth failed: %s", ev.Message)
		default:
			if c.handler != nil {
				c.handler(ev)
			}
		}
	}
}

// Join asks for history, profile and presence.
func (c *Client) Join() error {
	return c.Send(map[string]string{"type": pb.KindJoin})
}

// Logout revokes the current session token.
func (c *Client) Logout() error {
	return c.Send(map[string]string{"type": pb.KindLogout})
}

// Say sends a chat line. Lines starting with '@' are chat commands.
func (c *Client) Say(text string) error {
	return c.Send(map[string]string{"type": pb.KindMessage, "message": text})
}

// Custom sends a profile command.
func (c *Client) Custom(command string, args ...string) error {
	if args == nil {
		args = []string{}
	}
	return c.Send(map[string]any{"type": pb.KindCustom, "command": command, "args": args})
}

// ReadEvent blocks for the next event. It must not be used after StartReceiving.
func (c *Client) ReadEvent() (Event, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("client: decode event: %w", err)
	}
	return ev, nil
}

// StartReceiving starts a goroutine that reads incoming events and
// dispatches them to the event handler.
func (c *Client) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			ev, err := c.ReadEvent()
			if err != nil {
				var closeErr *websocket.CloseError
				if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrCloseSent) {
					slog.Debug("connection closed")
					return
				}
				slog.Error("read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(ev)
			}
		}
	}()
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.conn.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
