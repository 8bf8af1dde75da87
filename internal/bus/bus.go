package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/juju/pubsub/v2"

	"github.com/tommyorndorff/icinga2/internal/events"
)

// ErrClosed is returned by WaitForEvent after the queue has been closed.
var ErrClosed = errors.New("bus: queue closed")

// Hub fans events out to registered queues, keyed by event type.
type Hub struct {
	hub *pubsub.SimpleHub

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		hub:    pubsub.NewSimpleHub(nil),
		queues: make(map[string]*Queue),
	}
}

// Publish routes ev to every queue whose type filter includes ev's type.
// The returned channel closes once all queues have taken delivery.
func (h *Hub) Publish(ev events.Event) <-chan struct{} {
	wait := h.hub.Publish(ev.Type(), ev)
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	return done
}

// NewQueue builds a queue subscribed to the given event types. The queue is
// live immediately; Register makes it discoverable by name.
func (h *Hub) NewQueue(name string, types []string) *Queue {
	q := &Queue{
		name: name,
		ch:   make(chan events.Event, queueBuffer),
		done: make(chan struct{}),
	}
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		q.unsubs = append(q.unsubs, h.hub.Subscribe(t, q.deliver))
	}
	return q
}

// Register makes q discoverable under its name. Registering a second queue
// under an existing name replaces the registry entry but does not close the
// old queue; callers own that.
func (h *Hub) Register(q *Queue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queues[q.name] = q
}

// Queue returns the registered queue with the given name, if any.
func (h *Hub) Queue(name string) (*Queue, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.queues[name]
	return q, ok
}

// UnregisterIfUnused removes and closes the named queue if no client still
// holds it. Reports whether the queue was removed.
func (h *Hub) UnregisterIfUnused(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.queues[name]
	if !ok {
		return false
	}
	if q.clientCount() > 0 {
		return false
	}
	delete(h.queues, name)
	q.Close()
	return true
}

// Per-queue delivery buffer. A consumer that stalls longer than this backs
// up into the hub's per-subscriber pending list rather than blocking
// publishers.
const queueBuffer = 1024

// Queue is a named, type-filtered event queue with a single logical reader.
type Queue struct {
	name   string
	ch     chan events.Event
	done   chan struct{}
	unsubs []func()

	mu      sync.Mutex
	clients int
	closed  bool
}

// Name returns the queue's registry name.
func (q *Queue) Name() string { return q.name }

// AddClient records a consumer holding this queue.
func (q *Queue) AddClient() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clients++
}

// RemoveClient releases a consumer's hold.
func (q *Queue) RemoveClient() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.clients > 0 {
		q.clients--
	}
}

func (q *Queue) clientCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clients
}

// WaitForEvent blocks until an event arrives, the queue closes, or ctx is
// done.
func (q *Queue) WaitForEvent(ctx context.Context) (events.Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-q.done:
		// Drain anything already buffered before reporting closed.
		select {
		case ev := <-q.ch:
			return ev, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes from the hub and releases any blocked WaitForEvent.
// Safe to call more than once and concurrently with deliveries.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	for _, unsub := range q.unsubs {
		unsub()
	}
	close(q.done)
}

// deliver is the hub subscription handler. It runs on the hub's subscriber
// goroutine; blocking here only delays this queue's own deliveries.
func (q *Queue) deliver(_ string, data interface{}) {
	ev, ok := data.(events.Event)
	if !ok {
		return
	}
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}
