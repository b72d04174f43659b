package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps profiles in process memory. Profiles are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[int64]Profile
	now      func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[int64]Profile),
		now:      time.Now,
	}
}

// Get returns a copy of the stored profile or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, chatID int64) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[chatID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p.Clone(), nil
}

// Put stores a copy of p, overwriting any previous version.
func (m *MemoryStore) Put(_ context.Context, p Profile) error {
	p = p.Clone()
	p.UpdatedAt = m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ChatID] = p
	return nil
}

// Count returns the number of stored profiles.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles), nil
}
