package cache

import (
	"context"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxEntries bounds MemCache when no size is given.
const DefaultMaxEntries = 1000

type memCacheEntry struct {
	entry   Entry
	expires time.Time
}

// MemCache is an in-memory LRU store with per-entry expiry.
type MemCache struct {
	lru *expirable.LRU[string, memCacheEntry]
	now func() time.Time
}

// NewMemCache creates a store holding at most maxEntries entries.
// The least recently used entry is evicted when full.
func NewMemCache(maxEntries int) *MemCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemCache{
		// expiry is tracked per entry, the LRU itself never expires anything
		lru: expirable.NewLRU[string, memCacheEntry](maxEntries, nil, 0),
		now: time.Now,
	}
}

func (m *MemCache) Has(_ context.Context, key string) (bool, error) {
	e, ok := m.lru.Peek(key)
	return ok && m.now().Before(e.expires), nil
}

func (m *MemCache) Get(_ context.Context, key string) (Entry, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	if !m.now().Before(e.expires) {
		m.lru.Remove(key)
		return Entry{}, ErrNotFound
	}
	entry := e.entry
	entry.Header = entry.Header.Clone()
	entry.Body = append([]byte(nil), entry.Body...)
	return entry, nil
}

func (m *MemCache) Put(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	// copy so later changes by the caller do not leak into the stored entry
	entry.Header = entry.Header.Clone()
	entry.Body = append([]byte(nil), entry.Body...)
	m.lru.Add(key, memCacheEntry{entry: entry, expires: m.now().Add(ttl)})
	return nil
}

func (m *MemCache) Flush(_ context.Context) error {
	m.lru.Purge()
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (m *MemCache) Len() int {
	return m.lru.Len()
}

var _ Store = (*MemCache)(nil)
