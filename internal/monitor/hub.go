package monitor

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultSubscriptionBuffer is used when Subscribe is given a non-positive size.
const DefaultSubscriptionBuffer = 16

// Subscription receives published events until it is unsubscribed.
type Subscription struct {
	ID string

	mu     sync.Mutex
	ch     chan StatusEvent
	closed bool
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan StatusEvent { return s.ch }

// deliver never blocks. When the buffer is full the oldest pending event is
// discarded to make room. It reports whether an event was dropped.
func (s *Subscription) deliver(ev StatusEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return false
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
	return true
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub fans status events out to subscribers. Subscribers only see events
// published after they joined.
type Hub struct {
	subs     *xsync.Map[string, *Subscription]
	observer Observer
}

// NewHub creates a Hub. observer may be nil.
func NewHub(observer Observer) *Hub {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Hub{
		subs:     xsync.NewMap[string, *Subscription](),
		observer: observer,
	}
}

// Subscribe registers a new subscriber with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	sub := &Subscription{
		ID: uuid.NewString(),
		ch: make(chan StatusEvent, buffer),
	}
	h.subs.Store(sub.ID, sub)
	h.observer.ObserveSubscribers(h.subs.Size())
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Unknown IDs
// are ignored.
func (h *Hub) Unsubscribe(id string) {
	sub, ok := h.subs.LoadAndDelete(id)
	if !ok {
		return
	}
	sub.close()
	h.observer.ObserveSubscribers(h.subs.Size())
}

// Publish delivers ev to every current subscriber without blocking.
func (h *Hub) Publish(ev StatusEvent) {
	h.subs.Range(func(_ string, sub *Subscription) bool {
		if sub.deliver(ev) {
			h.observer.ObserveDropped()
		}
		return true
	})
}

// Count returns the number of subscribers.
func (h *Hub) Count() int { return h.subs.Size() }

// Close ends every subscription.
func (h *Hub) Close() {
	h.subs.Range(func(id string, _ *Subscription) bool {
		h.Unsubscribe(id)
		return true
	})
}
