package presence

import (
	"sync"

	"orchestrator-service/src/models"
)

// Registry maps a party's stable identity to its currently connected
// transport handle. Last write wins; not durable, rebuilt from scratch on
// process restart. Sessions that predate a restart cannot be recovered.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]models.Sender
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]models.Sender),
	}
}

// Register overwrites any prior handle for the party.
func (r *Registry) Register(partyID string, handle models.Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[partyID] = handle
}

// Unregister removes the mapping only if it still points at the given
// handle, so a stale connection closing cannot evict a fresh one.
func (r *Registry) Unregister(partyID string, handle models.Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[partyID] == handle {
		delete(r.handles, partyID)
	}
}

// Lookup returns the current handle for the party, if any.
func (r *Registry) Lookup(partyID string) (models.Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[partyID]
	return h, ok
}
