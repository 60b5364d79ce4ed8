package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/star/terrafusion/internal/metrics"
)

// subscriberBuffer is how many snapshots a subscriber may lag before drops.
const subscriberBuffer = 4

// Hub fans snapshots out to subscribers and remembers the latest one.
// Publish never blocks: a subscriber whose buffer is full misses that
// snapshot.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	latest atomic.Pointer[Snapshot]
	seq    atomic.Uint64
}

// Subscription receives snapshots on C until it is cancelled.
type Subscription struct {
	C       <-chan *Snapshot
	ch      chan *Snapshot
	dropped atomic.Uint64
}

// Dropped returns how many snapshots this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Publish stamps the snapshot with the next sequence number, records it as
// the latest and offers it to every subscriber.
func (h *Hub) Publish(s *Snapshot) {
	s.Seq = h.seq.Add(1)
	h.latest.Store(s)
	metrics.SnapshotPublished()

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- s:
		default:
			sub.dropped.Add(1)
			metrics.SnapshotDropped()
		}
	}
}

// Latest returns the most recently published snapshot, or nil.
func (h *Hub) Latest() *Snapshot {
	return h.latest.Load()
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan *Snapshot, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.SetSubscribers(n)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Calling it twice
// is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	n := len(h.subs)
	h.mu.Unlock()

	metrics.SetSubscribers(n)
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
