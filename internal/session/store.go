// Package session persists values retrieved from a target so later runs can
// resume them without querying the target again.
package session

import (
	"context"
	"sync"
	"time"
)

// Key identifies a cached value: the target, the injectable parameter and
// the expression the value was retrieved for.
type Key struct {
	Target     string
	Place      string
	Parameter  string
	Expression string
}

// Entry is a stored value.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Key       Key       `json:"key" yaml:"key"`
	Value     string    `json:"value" yaml:"value"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store persists retrieved values.
type Store interface {
	Lookup(ctx context.Context, key Key) (string, bool, error)
	Store(ctx context.Context, key Key, value string) error
	List(ctx context.Context, target string) ([]*Entry, error)
	Purge(ctx context.Context, target string) (int64, error)
	Cleanup(ctx context.Context, maxAge time.Duration) (int64, error)
	Close() error
}

// MemoryCache keeps values for the lifetime of the process.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[Key]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[Key]string)}
}

// Lookup returns the value stored under key.
func (m *MemoryCache) Lookup(_ context.Context, key Key) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Store saves value under key, replacing any previous value.
func (m *MemoryCache) Store(_ context.Context, key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Len returns the number of stored values.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
