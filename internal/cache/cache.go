// Package cache keeps last-known-good normalized responses so the portal
// can degrade to stale data when a live call cannot be made. TTL expiry
// never deletes an entry — an expired entry is still served on fallback,
// flagged stale. Explicit invalidation is the only hard delete.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
)

// Key scopes a cached response. Credential identity comes first so entries
// for different credentials can never collide.
type Key struct {
	Credential types.CredentialIdentity
	Provider   types.ProviderID
	Endpoint   string
}

func (k Key) String() string {
	return string(k.Credential) + "|" + string(k.Provider) + "|" + k.Endpoint
}

// Entry is one cached response. StoredAt and TTL let the caller compute
// staleness; the cache itself never hides an expired entry.
type Entry struct {
	Items    []types.UnifiedItem `json:"items"`
	StoredAt time.Time           `json:"stored_at"`
	TTL      time.Duration       `json:"ttl"`
}

// Stale reports whether the entry's TTL has lapsed at the given instant.
func (e *Entry) Stale(now time.Time) bool {
	return now.After(e.StoredAt.Add(e.TTL))
}

// Store is the degradation cache contract. Get returns expired entries;
// Set overwrites atomically on every successful fetch.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, bool)
	Set(ctx context.Context, key Key, items []types.UnifiedItem)
	Invalidate(ctx context.Context, key Key)
}

// MemoryStore is the in-process Store. When the entry cap is exceeded, the
// oldest entry is evicted.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[Key]*Entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	return &MemoryStore{
		entries:    make(map[Key]*Entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	// Copy so a mutating caller cannot corrupt later fallbacks.
	cp := *e
	cp.Items = append([]types.UnifiedItem(nil), e.Items...)
	return &cp, true
}

func (s *MemoryStore) Set(_ context.Context, key Key, items []types.UnifiedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[key] = &Entry{
		Items:    items,
		StoredAt: s.now(),
		TTL:      s.ttl,
	}
}

func (s *MemoryStore) Invalidate(_ context.Context, key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// evictOldest drops the entry with the earliest StoredAt. Must be called
// with s.mu held for writing.
func (s *MemoryStore) evictOldest() {
	var oldest Key
	var oldestAt time.Time
	first := true
	for k, e := range s.entries {
		if first || e.StoredAt.Before(oldestAt) {
			oldest = k
			oldestAt = e.StoredAt
			first = false
		}
	}
	if !first {
		delete(s.entries, oldest)
	}
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
