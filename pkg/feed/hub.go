package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantfold/bookd/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboard origins are filtered by the CORS layer.
		return true
	},
}

// Hub tracks connected feed subscribers and fans broadcast messages
// out to them.
type Hub struct {
	log *zap.SugaredLogger
	met *metrics.Metrics

	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	pingInterval time.Duration
}

func NewHub(log *zap.SugaredLogger, met *metrics.Metrics, pingInterval time.Duration) *Hub {
	return &Hub{
		log:          log,
		met:          met,
		clients:      make(map[*Client]bool),
		broadcast:    make(chan []byte, 256),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		pingInterval: pingInterval,
	}
}

// Run is the hub's main loop. Returns when ctx ends; use a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.met.FeedClients.Set(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.met.FeedClients.Set(float64(len(h.clients)))
			h.log.Infow("feed_client_connected", "client", client.id, "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.met.FeedClients.Set(float64(len(h.clients)))
				h.log.Infow("feed_client_disconnected", "client", client.id, "total", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it.
					close(client.send)
					delete(h.clients, client)
					h.met.FeedClients.Set(float64(len(h.clients)))
					h.log.Infow("feed_client_dropped", "client", client.id, "reason", "send buffer full")
				}
			}
		}
	}
}

// Broadcast queues a message for every connected subscriber.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("feed broadcast queue full, update skipped")
	}
}

// Client is one websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// readPump discards inbound frames; the feed is one-way. Its job is
// to notice closed connections and keep pong handling alive.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	readWait := 10 * c.hub.pingInterval
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debugw("feed_read_error", "client", c.id, "err", err)
			}
			return
		}
	}
}

// writePump forwards hub messages to the connection and pings on the
// keepalive cadence. Any failed write ends the connection; the read
// pump then unregisters the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
