package generation

import (
	"context"
	"strings"
	"sync"
)

// SessionKey names one document session. Successive generations under the same
// key see the previous artifact as context; an empty key disables continuity.
type SessionKey string

func (k SessionKey) Valid() bool { return strings.TrimSpace(string(k)) != "" }

// ContinuityStore holds the last successful serialized artifact per session.
// Put is last-write-wins.
type ContinuityStore interface {
	Get(ctx context.Context, key SessionKey) (string, bool, error)
	Put(ctx context.Context, key SessionKey, artifact string) error
}

// MemoryStore is the in-process ContinuityStore.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[SessionKey]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: map[SessionKey]string{}}
}

func (m *MemoryStore) Get(ctx context.Context, key SessionKey) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	return v, ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, key SessionKey, artifact string) error {
	m.mu.Lock()
	m.slots[key] = artifact
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}
