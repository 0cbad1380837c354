// Package notify is a small in-process change hub. Store writers publish a
// topic after a successful commit and UI layers subscribe to re-run their
// queries, which replaces the platform-specific live-query objects the
// clients used to lean on.
package notify

import "sync"

type Topic string

const (
	TopicItems      Topic = "items"
	TopicLabels     Topic = "labels"
	TopicHighlights Topic = "highlights"
	TopicSync       Topic = "sync"
)

type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[Topic]map[int]chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: map[Topic]map[int]chan struct{}{},
	}
}

// Subscribe returns a channel that receives a (coalesced) signal whenever the
// topic is published, plus an unsubscribe func. The channel has a buffer of
// one; a slow consumer sees at most one pending signal, never a backlog.
func (h *Hub) Subscribe(topic Topic) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID

	ch := make(chan struct{}, 1)
	if h.subs[topic] == nil {
		h.subs[topic] = map[int]chan struct{}{}
	}
	h.subs[topic][id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[topic], id)
	}

	return ch, unsubscribe
}

// Publish signals all subscribers of the topic. It never blocks: a signal is
// dropped when the subscriber already has one pending.
func (h *Hub) Publish(topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
