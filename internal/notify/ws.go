package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/observability"
)

var ErrNoSession = errors.New("no ws session")

// WSSession represents a connected client session
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Envelope is what clients receive on the socket.
type Envelope struct {
	Type    string `json:"type"` // notification, catalog
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Version uint64 `json:"version,omitempty"`
}

// WSHub holds client sessions
type WSHub struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	log      *logrus.Logger
}

func NewWSHub(log *logrus.Logger) *WSHub {
	return &WSHub{sessions: make(map[string]*WSSession), log: log}
}

func (h *WSHub) Add(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[clientID]; ok {
		_ = old.conn.Close()
	} else {
		observability.WSSessions.Inc()
	}
	h.sessions[clientID] = &WSSession{conn: conn}
}

func (h *WSHub) Remove(clientID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[clientID]; ok && s.conn == conn {
		delete(h.sessions, clientID)
		observability.WSSessions.Dec()
	}
}

// Serve registers conn and blocks reading from it until the client goes
// away. Incoming messages are ignored.
func (h *WSHub) Serve(clientID string, conn *websocket.Conn) {
	h.Add(clientID, conn)
	defer func() {
		h.Remove(clientID, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Notify sends to the client in ctx, or to everyone when ctx carries none.
func (h *WSHub) Notify(ctx context.Context, success bool, message string) error {
	env := Envelope{Type: "notification", Success: success, Message: message}
	if id := ClientFrom(ctx); id != "" {
		return h.SendTo(id, env)
	}
	h.Broadcast(env)
	return nil
}

func (h *WSHub) SendTo(clientID string, v any) error {
	h.mu.RLock()
	s, ok := h.sessions[clientID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(v); err != nil {
		h.log.WithError(err).WithField("client_id", clientID).Warn("ws send error")
		return err
	}
	observability.Notifications.WithLabelValues("ws").Inc()
	return nil
}

func (h *WSHub) Broadcast(v any) {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		_ = h.SendTo(id, v)
	}
}
