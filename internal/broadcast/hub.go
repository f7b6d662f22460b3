// Package broadcast fans post lifecycle events out to connected clients.
// There is one topic; clients tell events apart by their action.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayush/livefeed/backend/internal/metrics"
	"github.com/ayush/livefeed/backend/internal/models"
)

// Topic is the single channel carrying post events.
const Topic = "posts"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one post lifecycle notification. Create and update carry the
// post; delete carries only its id.
type Event struct {
	Action string           `json:"action"`
	Post   *models.PostView `json:"post,omitempty"`
	PostID string           `json:"postId,omitempty"`
}

// Publisher accepts events for delivery. Publish must not block and has no
// failure mode visible to the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Hub delivers events to the subscribers of this process.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	closed bool
	log    *logrus.Entry
}

type subscription struct {
	ch   chan []byte
	once sync.Once
}

func NewHub(buffer int, log logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[*subscription]struct{}),
		buffer: buffer,
		log:    log.WithField("component", "broadcast"),
	}
}

// Subscribe registers a subscriber. Events arrive on the returned channel as
// encoded JSON. cancel unregisters and closes the channel; it is safe to
// call more than once.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	sub := &subscription{ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetSubscribers(n)

	cancel := func() {
		h.mu.Lock()
		_, ok := h.subs[sub]
		delete(h.subs, sub)
		n := len(h.subs)
		h.mu.Unlock()
		if ok {
			metrics.SetSubscribers(n)
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	return sub.ch, cancel
}

// Publish encodes ev and hands it to every subscriber.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("action", ev.Action).Error("encode event")
		return
	}
	h.Deliver(payload)
}

// Deliver sends an encoded event to every subscriber. A subscriber whose
// queue is full misses the event.
func (h *Hub) Deliver(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- payload:
			metrics.RecordDelivered()
		default:
			metrics.RecordDropped()
			h.log.Debug("subscriber queue full, event dropped")
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every subscriber and closes their channels. Later
// subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(h.subs, sub)
	}
	metrics.SetSubscribers(0)
}
