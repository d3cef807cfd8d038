// Package events fans monitoring events out to live subscribers such as
// the notification stream and WebSocket clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event types.
const (
	TypeSiteDown      = "site_down"
	TypeSiteRecovered = "site_recovered"
	TypeSiteChecked   = "site_checked"
	TypeNotification  = "notification"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	SiteID  int64     `json:"site_id,omitempty"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType string, siteID int64, status, message string) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		SiteID:  siteID,
		Status:  status,
		Message: message,
		Time:    time.Now(),
	}
}

// Hub is an in-process publish/subscribe broker.
//
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
}

// NewHub creates a hub whose subscriber channels hold up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers the event to every current subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			log.Debug().Uint64("subscriber", id).Str("event_id", e.ID).Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
