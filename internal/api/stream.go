package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/session"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowedOrigin(origin)
	},
}

// StreamMessage is the envelope pushed to stream subscribers.
type StreamMessage struct {
	Type string            `json:"type"`
	Run  session.RunReport `json:"run"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans run reports out to websocket subscribers. It is registered as a
// session notifier, so every mutation reaches every connected client.
type Hub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	logger  *zap.Logger
}

func newHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		logger:  logger,
	}
}

// RunChanged broadcasts report. Slow clients drop messages rather than block the session.
func (h *Hub) RunChanged(report session.RunReport) {
	h.broadcast(StreamMessage{Type: "run", Run: report})
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg StreamMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode stream message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Debug("stream client lagging; dropping message")
		}
	}
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// handleStream upgrades to a websocket, sends the current run, then pushes every
// later change. The client is registered before any newer report can publish.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	s.session.Observe(func(run session.RunReport) {
		if first, err := json.Marshal(StreamMessage{Type: "snapshot", Run: run}); err == nil {
			c.send <- first
		}
		s.hub.add(c)
	})
	s.logger.Debug("stream client connected", zap.Int("clients", s.hub.Clients()))

	go c.writer()
	c.reader()

	s.hub.remove(c)
	s.logger.Debug("stream client disconnected", zap.Int("clients", s.hub.Clients()))
}

// reader discards inbound messages and returns when the connection closes.
func (c *streamClient) reader() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *streamClient) writer() {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
