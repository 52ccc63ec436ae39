package ratelimit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tacopii/tacopii/internal/core"
)

// MemoryStore keeps window state in process memory. It is only correct for a
// single-instance deployment.
//
// Entries expire from the cache one window after they were opened, so keys
// that stop sending requests do not accumulate.
type MemoryStore struct {
	mu      sync.Mutex
	entries *gocache.Cache
}

// NewMemoryStore returns an empty store. cleanupEvery controls how often
// expired entries are purged; zero or negative uses one minute.
func NewMemoryStore(cleanupEvery time.Duration) *MemoryStore {
	if cleanupEvery <= 0 {
		cleanupEvery = time.Minute
	}
	return &MemoryStore{
		entries: gocache.New(DefaultWindow, cleanupEvery),
	}
}

// Name identifies the backend.
func (s *MemoryStore) Name() string { return "memory" }

// Hit implements Store.
func (s *MemoryStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (core.RateLimitEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &core.RateLimitEntry{}
	found := false
	if cached, ok := s.entries.Get(key); ok {
		if existing, ok := cached.(*core.RateLimitEntry); ok {
			entry = existing
			found = true
		}
	}

	fresh := !found || entry.Expired(now)
	allowed := hit(entry, found, key, limit, window, now)
	if fresh {
		s.entries.Set(key, entry, window)
	}
	return *entry, allowed, nil
}

// List returns the live entries whose key starts with prefix, sorted by key.
func (s *MemoryStore) List(ctx context.Context, prefix string) ([]core.RateLimitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []core.RateLimitEntry
	for key, item := range s.entries.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if entry, ok := item.Object.(*core.RateLimitEntry); ok {
			result = append(result, *entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Reset drops the window for key.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(key)
	return nil
}
