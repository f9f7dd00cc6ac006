package breaker

import (
	"context"
	"sync"
	"time"
)

// ShadowModeEntry records when and why a (tenant,uid) pair entered shadow
// mode — strategies under shadow mode evaluate normally but never produce
// live proposals.
type ShadowModeEntry struct {
	Reason      string
	ActivatedAt time.Time
}

// InMemoryShadowModeRegistry is a process-local ShadowModeRegistry,
// sufficient for a single-instance deployment or tests; a persistent
// store-backed implementation can satisfy the same interface.
type InMemoryShadowModeRegistry struct {
	mu      sync.RWMutex
	entries map[string]ShadowModeEntry
}

// NewInMemoryShadowModeRegistry builds an empty registry.
func NewInMemoryShadowModeRegistry() *InMemoryShadowModeRegistry {
	return &InMemoryShadowModeRegistry{entries: make(map[string]ShadowModeEntry)}
}

func shadowKey(tenantID, userID string) string {
	return tenantID + "\x00" + userID
}

// SetShadowMode marks (tenantID, userID) as being in shadow mode.
func (r *InMemoryShadowModeRegistry) SetShadowMode(ctx context.Context, tenantID, userID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[shadowKey(tenantID, userID)] = ShadowModeEntry{Reason: reason, ActivatedAt: time.Now().UTC()}
	return nil
}

// IsShadowMode reports whether (tenantID, userID) is currently in shadow
// mode, and the entry recording why.
func (r *InMemoryShadowModeRegistry) IsShadowMode(tenantID, userID string) (ShadowModeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[shadowKey(tenantID, userID)]
	return e, ok
}

// Clear removes a (tenantID, userID) pair from shadow mode — used when an
// operator manually re-enables a user's strategies.
func (r *InMemoryShadowModeRegistry) Clear(tenantID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, shadowKey(tenantID, userID))
}
