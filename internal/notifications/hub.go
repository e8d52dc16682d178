package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"akinmueble/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	maxSubscribersPerProperty = 50
	maxSubscribers            = 5000

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("event hub is shut down")

// Subscriber is one websocket connection following a property's requests.
type Subscriber struct {
	hub        *Hub
	conn       *websocket.Conn
	PropertyID uint
	Send       chan []byte
}

// Hub fans request events out to the websocket connections watching each property.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[*Subscriber]struct{}
	total  int
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint]map[*Subscriber]struct{})}
}

// Register attaches conn to propertyID's event stream.
func (h *Hub) Register(propertyID uint, conn *websocket.Conn) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.total >= maxSubscribers {
		return nil, errors.New("server connection limit reached")
	}
	m, ok := h.subs[propertyID]
	if !ok {
		m = make(map[*Subscriber]struct{})
		h.subs[propertyID] = m
	}
	if len(m) >= maxSubscribersPerProperty {
		return nil, errors.New("property connection limit reached")
	}

	s := &Subscriber{hub: h, conn: conn, PropertyID: propertyID, Send: make(chan []byte, sendBuffer)}
	m[s] = struct{}{}
	h.total++
	return s, nil
}

// Unregister detaches s and closes its send channel. Repeated calls are harmless.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.subs[s.PropertyID]
	if !ok {
		return
	}
	if _, exists := m[s]; !exists {
		return
	}
	delete(m, s)
	h.total--
	close(s.Send)
	if len(m) == 0 {
		delete(h.subs, s.PropertyID)
	}
}

// Broadcast queues payload for every subscriber of propertyID. Slow
// subscribers whose buffer is full miss the event.
func (h *Hub) Broadcast(propertyID uint, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[propertyID] {
		select {
		case s.Send <- payload:
		default:
			middleware.Logger.Warn("request events: subscriber buffer full, event dropped",
				slog.Uint64("property_id", uint64(propertyID)))
		}
	}
}

// Count returns the number of subscribers following propertyID.
func (h *Hub) Count(propertyID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[propertyID])
}

// StartWiring forwards every request event published through n to the
// matching subscribers.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartRequestSubscriber(ctx, func(propertyID uint, payload string) {
		h.Broadcast(propertyID, []byte(payload))
	})
}

// Shutdown closes every connection with a going-away frame and refuses new ones.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for propertyID, m := range h.subs {
		for s := range m {
			close(s.Send)
			if s.conn == nil {
				continue
			}
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
				time.Now().Add(writeWait))
			if err := s.conn.Close(); err != nil {
				middleware.Logger.Warn("request events: close websocket failed",
					slog.Uint64("property_id", uint64(propertyID)),
					slog.String("error", err.Error()))
			}
		}
	}
	h.subs = make(map[uint]map[*Subscriber]struct{})
	h.total = 0
	return nil
}

// ReadPump discards client frames and returns once the peer goes away,
// unregistering the subscriber.
func (s *Subscriber) ReadPump() {
	defer s.hub.Unregister(s)

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("request events: read error",
					slog.Uint64("property_id", uint64(s.PropertyID)),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

// WritePump writes queued events and keep-alive pings until Send closes.
func (s *Subscriber) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
