package cache

import (
	"context"
	"sync"
	"time"
)

type memItem struct {
	value  []byte
	expire time.Time
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memItem
	closed bool

	stop chan struct{}
	once sync.Once
}

// NewMemoryStore creates a store whose janitor sweeps expired entries every
// interval. A non-positive interval disables the janitor; expired entries
// are still never returned.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	m := &MemoryStore{
		items: make(map[string]memItem),
		stop:  make(chan struct{}),
	}
	if interval > 0 {
		go m.janitor(interval)
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	it, ok := m.items[key]
	if !ok || (!it.expire.IsZero() && time.Now().After(it.expire)) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	var expire time.Time
	if ttl > 0 {
		expire = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items[key] = memItem{value: buf, expire: expire}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		close(m.stop)
		m.mu.Lock()
		m.closed = true
		m.items = nil
		m.mu.Unlock()
	})
	return nil
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *MemoryStore) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, it := range m.items {
		if !it.expire.IsZero() && now.After(it.expire) {
			delete(m.items, k)
		}
	}
}
