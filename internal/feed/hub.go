package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/nft-market/internal/model"
)

// Config holds per-subscriber settings.
type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ClientBuffer int
}

// DefaultConfig returns default settings.
func DefaultConfig() Config {
	return Config{
		PingInterval: 15 * time.Second,
		WriteTimeout: 5 * time.Second,
		ClientBuffer: 256,
	}
}

// Stats reports hub counters.
type Stats struct {
	Clients    int   `json:"clients"`
	Broadcasts int64 `json:"broadcasts"`
	Evicted    int64 `json:"evicted"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) shut() {
	s.once.Do(func() { close(s.done) })
}

// Hub upgrades HTTP requests to WebSocket subscriptions and broadcasts events.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool

	broadcasts atomic.Int64
	evicted    atomic.Int64
}

// NewHub creates a hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ClientBuffer < 1 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
	}
}

// Name identifies the hub as a dispatch sink.
func (h *Hub) Name() string { return "feed" }

// ServeHTTP upgrades the request and serves the subscription until either
// side closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("feed upgrade failed", "error", err)
		return
	}

	s := &subscriber{
		conn: conn,
		send: make(chan []byte, h.cfg.ClientBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[s] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("feed subscriber connected", "remote", r.RemoteAddr, "clients", n)

	go h.writeLoop(s)
	h.readLoop(s)

	h.remove(s)
	h.logger.Debug("feed subscriber disconnected", "remote", r.RemoteAddr)
}

// Publish broadcasts e to every subscriber. Subscribers that cannot keep up
// are evicted.
func (h *Hub) Publish(_ context.Context, e model.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	var slow []*subscriber
	for s := range h.clients {
		select {
		case s.send <- payload:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.Unlock()

	for _, s := range slow {
		h.evicted.Add(1)
		h.logger.Warn("evicting slow feed subscriber", "buffer", cap(s.send))
		h.remove(s)
	}

	h.broadcasts.Add(1)
	return nil
}

// Start is a no-op; subscribers arrive through ServeHTTP.
func (h *Hub) Start(context.Context) error { return nil }

// Stop disconnects every subscriber and refuses new ones.
func (h *Hub) Stop(context.Context) error {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.clients))
	for s := range h.clients {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.remove(s)
	}
	return nil
}

// Stats returns hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	return Stats{
		Clients:    n,
		Broadcasts: h.broadcasts.Load(),
		Evicted:    h.evicted.Load(),
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.clients, s)
	h.mu.Unlock()
	s.shut()
}

// readLoop discards inbound frames; it exists to process control frames and
// notice when the peer goes away.
func (h *Hub) readLoop(s *subscriber) {
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only goroutine writing to the connection.
func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.shut()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				s.shut()
				return
			}
		}
	}
}
