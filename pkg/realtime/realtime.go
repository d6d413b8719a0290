// Package realtime fans session events out to in-process listeners such as
// websocket connections. Delivery is best effort: a listener whose buffer is
// full misses the event, and nothing is replayed.
package realtime

import (
	"sync"
	"time"
)

// Event types published by a search session.
const (
	TypeSearchStarted   = "search_started"
	TypeSearchFinished  = "search_finished"
	TypeSearchFailed    = "search_failed"
	TypeResponseDropped = "response_dropped"
	TypeFavorites       = "favorites"
	TypeReports         = "reports"
	TypeTab             = "tab"
)

type Event struct {
	Type    string    `json:"type"`
	Seq     uint64    `json:"seq,omitempty"`
	Query   string    `json:"query,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher is what event producers depend on.
type Publisher interface {
	Publish(Event)
}

// Hub is a concurrency-safe in-memory fan-out dispatcher. Each listener owns
// a buffered channel.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister(id) when done.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Publish delivers e to every listener with room in its buffer.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- e:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
