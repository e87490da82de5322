package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"socialfeed/internal/observability"
)

// Max total connections
const maxTotalConns = 10000

// ErrHubClosed is returned when registering after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// Hub attaches websocket connections to broker subscriptions.
type Hub struct {
	broker   *Broker
	mu       sync.Mutex
	clients  map[*Client]struct{}
	maxConns int
	closed   bool
	wg       sync.WaitGroup
}

// NewHub creates a Hub delivering events from broker.
func NewHub(broker *Broker) *Hub {
	return &Hub{
		broker:   broker,
		clients:  make(map[*Client]struct{}),
		maxConns: maxTotalConns,
	}
}

// Register subscribes conn to topics. It fails once the connection limit is
// reached or the hub has shut down.
func (h *Hub) Register(conn Conn, topics []Topic) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= h.maxConns {
		return nil, errors.New("server connection limit reached")
	}

	client := newClient(h, conn, h.broker.Subscribe(topics...))
	h.clients[client] = struct{}{}
	h.wg.Add(1)
	observability.WebSocketConnections.Inc()
	return client, nil
}

// UnregisterClient detaches client and ends its subscription. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	client.Close()
	if ok {
		if dropped := client.sub.Dropped(); dropped > 0 {
			observability.Logger.Warn("websocket client fell behind",
				slog.Uint64("dropped_events", dropped),
				slog.Int("pending_events", client.sub.Pending()))
		}
		observability.WebSocketConnections.Dec()
		h.wg.Done()
	}
}

// Serve registers conn and runs its pumps until the peer disconnects or the
// hub shuts down. It returns after the connection is no longer in use.
func (h *Hub) Serve(conn Conn, topics []Topic) error {
	client, err := h.Register(conn, topics)
	if err != nil {
		_ = conn.Close()
		return err
	}

	go client.WritePump()
	client.ReadPump()
	<-client.writerDone
	return nil
}

// Count reports the number of registered clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown stops accepting connections and closes every client, waiting for
// them to detach or for ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
