package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/model"
	"github.com/mcqlab/mcq-review/internal/protocol"
)

const writeTimeout = 10 * time.Second

// Hub is the subscriber registry for full-state fan-out. Connections register
// on upgrade and unregister on disconnect; every accepted mutation is pushed
// to all of them, the issuer included.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]*Subscriber
	nextID      int64
	log         zerolog.Logger
}

// Subscriber is one registered connection. Its mutex serializes writes, since
// broadcasts and direct replies can race on the same socket.
type Subscriber struct {
	id   int64
	conn *websocket.Conn
	mu   sync.Mutex
}

// New creates an empty Hub.
func New(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int64]*Subscriber),
		log:         log.With().Str("component", "hub").Logger(),
	}
}

// Register adds a connection to the registry and returns its subscriber
// handle.
func (h *Hub) Register(conn *websocket.Conn) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	subscriber := &Subscriber{id: h.nextID, conn: conn}
	h.subscribers[subscriber.id] = subscriber
	h.log.Debug().Int64("subscriber", subscriber.id).Int("total", len(h.subscribers)).Msg("Client registered")
	return subscriber
}

// Unregister removes a subscriber. Safe to call more than once.
func (h *Hub) Unregister(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, s.id)
	h.log.Debug().Int64("subscriber", s.id).Int("total", len(h.subscribers)).Msg("Client unregistered")
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// StateChanged implements store.Notifier: it wraps the snapshot in a
// STATE_UPDATE envelope and fans it out.
func (h *Hub) StateChanged(state model.AppState, timestamp int64) {
	h.Broadcast(protocol.ServerMessage{
		Type:      protocol.MessageStateUpdate,
		State:     state,
		Timestamp: timestamp,
	})
}

// Broadcast writes a message to every subscriber. A failed write only logs;
// the reader side of the dead connection will notice and unregister it.
func (h *Hub) Broadcast(msg protocol.ServerMessage) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for _, subscriber := range h.subscribers {
		targets = append(targets, subscriber)
	}
	h.mu.RUnlock()

	for _, subscriber := range targets {
		if err := subscriber.Send(msg); err != nil {
			h.log.Debug().Err(err).Int64("subscriber", subscriber.id).Msg("Broadcast write failed")
		}
	}
}

// Send writes one message to this subscriber with a write deadline.
func (s *Subscriber) Send(msg protocol.ServerMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}
