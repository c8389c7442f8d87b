// Package notify is the in-process change feed shared by the memory and
// SQLite document stores.
package notify

import (
	"context"
	"sync"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

const bufferSize = 64

type topic struct {
	collection string
	ownerID    string
}

type subscriber struct {
	ch     chan models.ChangeEvent
	closed bool
}

// Hub fans change events out to watchers of (collection, owner).
// Publish never blocks: a watcher whose buffer is full is dropped and its
// channel closed, so a stalled client cannot hold up writers.
type Hub struct {
	mu     sync.Mutex
	subs   map[topic]map[*subscriber]struct{}
	logger *common.Logger
	done   bool
}

// NewHub creates an empty hub.
func NewHub(logger *common.Logger) *Hub {
	return &Hub{
		subs:   make(map[topic]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a watcher. The returned channel is closed when ctx is
// done, when the watcher falls behind, or when the hub is closed.
func (h *Hub) Subscribe(ctx context.Context, collection, ownerID string) <-chan models.ChangeEvent {
	sub := &subscriber{ch: make(chan models.ChangeEvent, bufferSize)}
	key := topic{collection: collection, ownerID: ownerID}

	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		h.remove(key, sub)
		h.mu.Unlock()
	}()
	return sub.ch
}

// remove must be called with h.mu held.
func (h *Hub) remove(key topic, sub *subscriber) {
	if set, ok := h.subs[key]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish delivers ev to every watcher of its collection and owner.
func (h *Hub) Publish(ev models.ChangeEvent) {
	key := topic{collection: ev.Collection, ownerID: ev.OwnerID}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[key] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn().
				Str("collection", ev.Collection).
				Str("owner_id", ev.OwnerID).
				Msg("Change watcher fell behind, dropping it")
			h.remove(key, sub)
		}
	}
}

// Count returns the number of active watchers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Close closes every watcher channel. Later subscriptions return closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done = true
	for key, set := range h.subs {
		for sub := range set {
			h.remove(key, sub)
		}
	}
}
