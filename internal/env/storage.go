// internal/env/storage.go
package env

import (
	"sort"
	"sync"
)

// MemoryStorage is a Storage kept in process memory. Setting Blocked makes
// every read fail the way a browser with blocked storage does.
type MemoryStorage struct {
	mu      sync.RWMutex
	items   map[string]string
	blocked bool
}

// NewMemoryStorage returns an empty storage seeded with items.
func NewMemoryStorage(items ...map[string]string) *MemoryStorage {
	s := &MemoryStorage{items: make(map[string]string)}
	for _, m := range items {
		for k, v := range m {
			s.items[k] = v
		}
	}
	return s
}

// NewBlockedStorage returns a storage whose reads always fail.
func NewBlockedStorage() *MemoryStorage {
	s := NewMemoryStorage()
	s.blocked = true
	return s
}

func (s *MemoryStorage) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.blocked {
		return "", false, ErrStorageUnavailable
	}
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStorage) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *MemoryStorage) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Clear removes every item.
func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
}

// Keys returns the stored keys in sorted order.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Blocked reports whether reads fail.
func (s *MemoryStorage) Blocked() bool { return s.blocked }
