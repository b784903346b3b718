package store

import "sync"

// MemoryStore is an in-memory KeyValueStore for tests and ephemeral hosts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the blob stored under key.
func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return blob, nil
}

// Set stores blob under key.
func (m *MemoryStore) Set(key, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = blob
	return nil
}

// Remove deletes key.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
