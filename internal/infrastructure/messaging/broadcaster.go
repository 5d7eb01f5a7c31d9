// Package messaging provides the websocket feed of invalidation reports.
package messaging

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 16
)

// Envelope is the JSON frame sent to subscribers.
type Envelope struct {
	Type    string    `json:"type"`
	SentAt  time.Time `json:"sentAt"`
	Payload any       `json:"payload"`
}

// Client is a single connected feed subscriber.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Broadcaster manages feed subscribers. A subscriber whose send buffer is
// full is dropped instead of slowing the publisher.
type Broadcaster struct {
	clients  map[*Client]bool
	mu       sync.Mutex
	logger   *logging.ChanneledLogger
	upgrader websocket.Upgrader
}

var _ Publisher = (*Broadcaster)(nil)

func NewBroadcaster(logger *logging.ChanneledLogger, allowedOrigins []string) *Broadcaster {
	b := &Broadcaster{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return b
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if candidate == "*" || candidate == origin {
				return true
			}
		}
		return false
	}
}

// Register adds a client to the fan-out set.
func (b *Broadcaster) Register(client *Client) {
	b.mu.Lock()
	b.clients[client] = true
	count := len(b.clients)
	b.mu.Unlock()
	b.logger.Invalidation().Debug("Feed client registered", "clients", count)
}

// Unregister removes a client and closes its send channel.
func (b *Broadcaster) Unregister(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(client)
}

func (b *Broadcaster) remove(client *Client) {
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.Send)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) Publish(eventType string, payload any) {
	message, err := json.Marshal(Envelope{Type: eventType, SentAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		b.logger.Invalidation().Error("Failed to marshal feed event", "type", eventType, "error", err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		select {
		case client.Send <- message:
		default:
			b.logger.Invalidation().Warn("Feed client too slow, dropping")
			b.remove(client)
		}
	}
}

// ServeWS upgrades the request and streams events until the peer leaves.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Invalidation().Warn("Feed upgrade failed", "error", err.Error())
		return
	}

	client := &Client{Conn: conn, Send: make(chan []byte, sendBufferSize)}
	b.Register(client)

	go b.writePump(client)
	b.readPump(client)
}

// readPump drains control frames and unregisters on disconnect.
func (b *Broadcaster) readPump(client *Client) {
	defer func() {
		b.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		b.remove(client)
	}
}
