package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// Memory is an in-process Cache implementation with TTL expiry and a
// background janitor sweeping expired entries.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	stop    chan struct{}
	closed  bool
}

// NewMemory creates an in-memory cache. The janitor sweeps expired entries
// once a minute until Close is called.
func NewMemory[V any]() *Memory[V] {
	m := &Memory[V]{
		entries: make(map[string]entry[V]),
		stop:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	closed := m.closed
	m.mu.RUnlock()

	var zero V
	if closed {
		return zero, ErrClosed
	}
	if !ok || e.expired() {
		return zero, ErrNotFound
	}
	return e.value, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	return nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.stop)
	m.entries = nil
	return nil
}

func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			for key, e := range m.entries {
				if e.expired() {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
