package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"socialfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Conn is the subset of a websocket connection the pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Frame is the JSON envelope written for every delivered event.
type Frame struct {
	Type    Topic  `json:"type"`
	Seq     uint64 `json:"seq"`
	Payload any    `json:"payload"`
}

// Client is a middleman between one websocket connection and its subscription.
type Client struct {
	hub  *Hub
	conn Conn
	sub  *Subscription

	ctx    context.Context
	cancel context.CancelFunc
	// closed when WritePump returns
	writerDone chan struct{}
}

func newClient(hub *Hub, conn Conn, sub *Subscription) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:        hub,
		conn:       conn,
		sub:        sub,
		ctx:        ctx,
		cancel:     cancel,
		writerDone: make(chan struct{}),
	}
}

// Close stops both pumps; the connection is closed by WritePump on its way out.
func (c *Client) Close() {
	c.cancel()
	c.sub.Unsubscribe()
}

// ReadPump discards inbound messages and returns when the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.Logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump forwards subscription events to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	lastPing := time.Now()
	defer func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
		close(c.writerDone)
	}()

	for {
		wait := time.Until(lastPing.Add(pingPeriod))
		if wait <= 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			lastPing = time.Now()
			continue
		}

		ctx, cancel := context.WithTimeout(c.ctx, wait)
		ev, err := c.sub.Next(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && c.ctx.Err() == nil {
				continue
			}
			return
		}

		data, err := json.Marshal(Frame{Type: ev.Topic, Seq: ev.Seq, Payload: ev.Payload()})
		if err != nil {
			observability.Logger.Error("failed to encode event frame", slog.String("topic", string(ev.Topic)), slog.String("error", err.Error()))
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
