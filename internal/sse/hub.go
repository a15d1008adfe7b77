// Package sse manages Server-Sent-Events client sessions and fans published
// events out to every client subscribed to a channel. Delivery is best-effort:
// each client owns a bounded queue and a slow consumer loses events according
// to the configured backpressure policy rather than blocking the broadcaster.
package sse

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livefeed/internal/core"
)

// Backpressure selects what happens when a client's queue is full.
type Backpressure string

const (
	// DropOldest discards the oldest pending event to make room (favors
	// freshness; the default).
	DropOldest Backpressure = "drop_oldest"
	// DropNewest discards the incoming event.
	DropNewest Backpressure = "drop_newest"
)

// DefaultQueueSize bounds each client's pending-event queue.
const DefaultQueueSize = 64

// DefaultHeartbeat is how long a stream may stay silent before the stream
// handler emits a synthetic heartbeat to keep proxies from timing out.
const DefaultHeartbeat = 30 * time.Second

// Client is one registered SSE session: a subscription set plus a bounded
// inbound queue. The queue channel is owned by the hub; consumers receive
// from Events and must stop using it after UnregisterClient.
type client struct {
	id     string
	subs   map[string]struct{}
	queue  chan core.LiveEvent
	closed bool
}

// Hub is the fan-out registry. Safe for concurrent use; registry mutations
// take the hub lock while each client's queue is an independent buffered
// channel, so distinct clients never block each other.
type Hub struct {
	mu           sync.Mutex
	clients      map[string]*client
	queueSize    int
	backpressure Backpressure
	logger       *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize overrides the per-client queue bound.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithBackpressure selects the full-queue policy.
func WithBackpressure(p Backpressure) Option {
	return func(h *Hub) {
		if p == DropOldest || p == DropNewest {
			h.backpressure = p
		}
	}
}

// NewHub creates an empty hub. A nil logger selects slog.Default.
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:      make(map[string]*client),
		queueSize:    DefaultQueueSize,
		backpressure: DropOldest,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterClient creates a new session and returns its id. The id combines
// the caller's hint with a random suffix so multiple tabs or devices for the
// same user never collide.
func (h *Hub) RegisterClient(userHint string) string {
	hint := strings.TrimSpace(userHint)
	if hint == "" {
		hint = "anon"
	}
	id := hint + "-" + uuid.NewString()[:8]

	h.mu.Lock()
	h.clients[id] = &client{
		id:    id,
		subs:  make(map[string]struct{}),
		queue: make(chan core.LiveEvent, h.queueSize),
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("sse client registered", "client", id, "clients", n)
	return id
}

// UnregisterClient removes a session and releases its queue. Subsequent
// broadcasts silently skip the id. Safe to call more than once; connection
// teardown paths often race with explicit cleanup.
func (h *Hub) UnregisterClient(clientID string) {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if ok {
		c.closed = true
		close(c.queue)
		delete(h.clients, clientID)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("sse client unregistered", "client", clientID, "clients", n)
	}
}

// Subscribe adds a channel to a client's subscription set. Unknown client ids
// are ignored.
func (h *Hub) Subscribe(clientID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		c.subs[channel] = struct{}{}
	}
}

// Events returns the receive side of a client's queue, or nil for an unknown
// id. The stream handler blocks on it with a heartbeat timeout.
func (h *Hub) Events(clientID string) <-chan core.LiveEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		return c.queue
	}
	return nil
}

// Broadcast enqueues event onto the queue of every registered client
// subscribed to channel and returns the number of clients reached. A full
// queue sheds one event per the hub's backpressure policy; per-client FIFO
// order of the retained events is preserved.
func (h *Hub) Broadcast(channel string, event core.LiveEvent) int {
	event.Channel = channel

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, c := range h.clients {
		if _, ok := c.subs[channel]; !ok {
			continue
		}
		h.enqueueLocked(c, event)
		delivered++
	}
	return delivered
}

// Send enqueues an event onto one client's queue regardless of subscriptions.
// Used for the initial connected event.
func (h *Hub) Send(clientID string, event core.LiveEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	h.enqueueLocked(c, event)
	return true
}

// enqueueLocked delivers one event to one client under the hub lock. The
// queue is only closed while the lock is held, so sending here cannot race a
// close.
func (h *Hub) enqueueLocked(c *client, event core.LiveEvent) {
	if c.closed {
		return
	}
	if h.backpressure == DropNewest {
		select {
		case c.queue <- event:
		default:
			h.logger.Warn("sse queue full, dropping newest", "client", c.id, "channel", event.Channel)
		}
		return
	}
	for {
		select {
		case c.queue <- event:
			return
		default:
			select {
			case <-c.queue: // shed the oldest pending event
				h.logger.Warn("sse queue full, dropping oldest", "client", c.id, "channel", event.Channel)
			default:
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Subscriptions returns a copy of a client's channel set, or nil for an
// unknown id.
func (h *Hub) Subscriptions(clientID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return nil
	}
	subs := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		subs = append(subs, ch)
	}
	return subs
}

// ChannelCounts returns subscriber counts per channel for /live/status.
func (h *Hub) ChannelCounts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, c := range h.clients {
		for ch := range c.subs {
			counts[ch]++
		}
	}
	return counts
}
