package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const purgeInterval = time.Minute

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the in-process tier. Values are stored JSON-encoded so
// behavior matches the Redis tier exactly. Expired entries are dropped
// on read and swept by a background purge loop.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stop    chan struct{}
	once    sync.Once
}

func NewMemory() *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	go m.purgeLoop()
	return m
}

func (m *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	entry := memoryEntry{data: b}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return ErrMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return ErrMiss
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// Len reports live entries, expired included until the next purge.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

var _ Store = (*MemoryStore)(nil)
