// Package push holds the per-conversation delivery registry. At most
// one channel is registered per conversation; delivery is best-effort.
package push

import (
	"log"
	"sync"
)

// Channel is one live client connection able to receive a payload.
type Channel interface {
	Send(payload any) error
}

// Registry maps conversation IDs to their registered channel. All
// operations are atomic with respect to concurrent callers.
type Registry struct {
	mu       sync.Mutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Connect registers ch for the conversation. A previously registered
// channel is displaced: last writer wins, the old channel receives
// nothing further.
func (r *Registry) Connect(conversationID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[conversationID] = ch
}

// Disconnect removes the registration, but only if ch is still the
// registered channel. A displaced channel disconnecting late must not
// evict its replacement. No-op on an unregistered key.
func (r *Registry) Disconnect(conversationID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[conversationID] == ch {
		delete(r.channels, conversationID)
	}
}

// Publish delivers payload to the registered channel if one exists.
// Absence of a subscriber and send failures are both swallowed; the
// payload is already durable by the time Publish runs.
func (r *Registry) Publish(conversationID string, payload any) {
	r.mu.Lock()
	ch := r.channels[conversationID]
	r.mu.Unlock()

	if ch == nil {
		return
	}
	if err := ch.Send(payload); err != nil {
		log.Printf("Failed to push payload to conversation %s: %v", conversationID, err)
	}
}
