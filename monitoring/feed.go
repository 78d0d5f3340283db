// Package monitoring streams saved predictions to websocket subscribers.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"exointel/history"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 16
)

// Message is the envelope pushed to feed subscribers.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed is a websocket hub that broadcasts each appended prediction record to
// every connected client. Slow clients are dropped rather than blocking the
// prediction path.
type Feed struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewFeed creates a feed hub. Run must be called before serving connections.
func NewFeed(logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run drives the hub until ctx is canceled.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range f.clients {
				close(c.send)
				delete(f.clients, c)
			}
			return

		case c := <-f.register:
			f.clients[c] = true
			f.logger.Info("feed client connected", zap.Int("total", len(f.clients)))

		case c := <-f.unregister:
			if _, ok := f.clients[c]; ok {
				delete(f.clients, c)
				close(c.send)
			}
			f.logger.Info("feed client disconnected", zap.Int("total", len(f.clients)))

		case payload := <-f.broadcast:
			for c := range f.clients {
				select {
				case c.send <- payload:
				default:
					delete(f.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// PublishPrediction pushes a saved record to all subscribers. Publishing
// never blocks; the message is dropped when the hub is saturated.
func (f *Feed) PublishPrediction(record history.PredictionRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		f.logger.Warn("failed to encode prediction for feed", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Message{
		Type:      "prediction",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return
	}

	select {
	case f.broadcast <- payload:
	default:
	}
}

// ServeHTTP upgrades the connection and subscribes it to the feed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	f.register <- c

	go f.writePump(c)
	go f.readPump(c)
}

func (f *Feed) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; the feed is one-way. It exists to detect
// closed connections and process control frames.
func (f *Feed) readPump(c *client) {
	defer func() {
		f.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
