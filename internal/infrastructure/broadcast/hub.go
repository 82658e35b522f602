package broadcast

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/udenfc/super11/internal/domain/competition"
	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/valyala/bytebufferpool"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// standingsFrame is what subscribed clients receive on every refresh.
type standingsFrame struct {
	Topic     string                     `json:"topic"`
	Drafts    []competition.StandingsRow `json:"drafts"`
	Timestamp int64                      `json:"timestamp"`
}

// Hub fans standings updates out to connected websocket clients.
// Delivery is fire-and-forget: a slow client is dropped rather than
// blocking the broadcast.
type Hub struct {
	logger     *logging.Logger
	register   chan *client
	unregister chan *client
	frames     chan []byte
	clients    map[*client]struct{}
	count      atomic.Int32
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		frames:     make(chan []byte, 16),
		clients:    make(map[*client]struct{}),
	}
}

// Run owns the client set. It returns when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.count.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int32(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int32(len(h.clients)))
			}
		case frame := <-h.frames:
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.count.Store(int32(len(h.clients)))
		}
	}
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Publish implements the publish channel for websocket subscribers.
func (h *Hub) Publish(ctx context.Context, topic string, comp competition.Competition) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	frame := standingsFrame{
		Topic:     topic,
		Drafts:    comp.StandingsRows(),
		Timestamp: time.Now().Unix(),
	}
	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(frame); err != nil {
		h.logger.WarnContext(ctx, "could not encode standings frame", "error", err)
		return
	}

	// The pooled buffer is reused after Put, so hand the hub a copy.
	owned := make([]byte, buf.Len())
	copy(owned, buf.Bytes())

	select {
	case h.frames <- owned:
	default:
		h.logger.WarnContext(ctx, "broadcast queue full, dropping standings frame")
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump only watches for close/pong; subscribers never send data.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
