package revocation

import (
	"context"
	"sync"
	"time"
)

// memoryStore is the single-node fallback used when no Redis is configured.
type memoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemory() Store {
	return &memoryStore{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *memoryStore) Revoke(_ context.Context, guestID string, ttl time.Duration) error {
	m.mu.Lock()
	m.revoked[guestID] = m.now().Add(ttl)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) IsRevoked(_ context.Context, guestID string) (bool, error) {
	m.mu.RLock()
	expiresAt, ok := m.revoked[guestID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if m.now().After(expiresAt) {
		m.mu.Lock()
		delete(m.revoked, guestID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}
