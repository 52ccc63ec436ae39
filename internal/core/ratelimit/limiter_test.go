package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tacopii/tacopii/internal/core"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "")
}

var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store { return NewMemoryStore(time.Minute) },
	"redis":  newRedisStore,
}

func newTestLimiter(store Store, limit int, c *clock) *Limiter {
	return &Limiter{
		Store:    store,
		Category: core.CategoryReview,
		Limit:    limit,
		Window:   time.Hour,
		Clock:    c.Now,
	}
}

func TestLimiterRemainingDecreasesUntilLimit(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			c := &clock{now: start}
			limiter := newTestLimiter(factory(t), 5, c)
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				decision, err := limiter.Check(ctx, "10.0.0.1")
				require.NoError(t, err)
				require.True(t, decision.Allowed, "request %d should be allowed", i)
				require.Equal(t, 5-i, decision.Remaining)
				require.Equal(t, start.Add(time.Hour), decision.ResetAt)
				c.Set(c.Now().Add(time.Minute))
			}

			decision, err := limiter.Check(ctx, "10.0.0.1")
			require.NoError(t, err)
			require.False(t, decision.Allowed)
			require.Equal(t, 0, decision.Remaining)
			require.Equal(t, start.Add(time.Hour), decision.ResetAt)
		})
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			c := &clock{now: start}
			limiter := newTestLimiter(factory(t), 1, c)
			ctx := context.Background()

			decision, err := limiter.Check(ctx, "client")
			require.NoError(t, err)
			require.True(t, decision.Allowed)

			// Still inside the window at the exact reset instant.
			c.Set(start.Add(time.Hour))
			decision, err = limiter.Check(ctx, "client")
			require.NoError(t, err)
			require.False(t, decision.Allowed)

			c.Set(start.Add(time.Hour + time.Millisecond))
			decision, err = limiter.Check(ctx, "client")
			require.NoError(t, err)
			require.True(t, decision.Allowed)
			require.Equal(t, 0, decision.Remaining)
			require.Equal(t, start.Add(2*time.Hour+time.Millisecond), decision.ResetAt)
		})
	}
}

func TestLimiterSeparatesClientsAndCategories(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			c := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			store := factory(t)
			review := newTestLimiter(store, 1, c)
			consult := newTestLimiter(store, 1, c)
			consult.Category = core.CategoryConsultation
			ctx := context.Background()

			d, err := review.Check(ctx, "a")
			require.NoError(t, err)
			require.True(t, d.Allowed)

			d, err = review.Check(ctx, "b")
			require.NoError(t, err)
			require.True(t, d.Allowed)

			d, err = consult.Check(ctx, "a")
			require.NoError(t, err)
			require.True(t, d.Allowed)

			d, err = review.Check(ctx, "a")
			require.NoError(t, err)
			require.False(t, d.Allowed)
		})
	}
}

func TestStoreListAndReset(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			c := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			store := factory(t)
			limiter := newTestLimiter(store, 2, c)
			ctx := context.Background()

			_, err := limiter.Check(ctx, "a")
			require.NoError(t, err)
			_, err = limiter.Check(ctx, "a")
			require.NoError(t, err)
			_, err = limiter.Check(ctx, "b")
			require.NoError(t, err)

			entries, err := store.List(ctx, "review:")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			require.Equal(t, "review:a", entries[0].Key)
			require.Equal(t, 2, entries[0].Count)
			require.Equal(t, c.Now().Add(time.Hour), entries[0].ResetAt)

			require.NoError(t, store.Reset(ctx, "review:a"))
			entries, err = store.List(ctx, "review:")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, "review:b", entries[0].Key)
		})
	}
}

func TestMemoryStoreConcurrentHitsNeverExceedLimit(t *testing.T) {
	limiter := New(NewMemoryStore(time.Minute), core.CategoryReview)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Check(ctx, "same-client")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(DefaultLimits[core.CategoryReview]), allowed.Load())
}

func TestLimiterWithoutStoreFailsOpen(t *testing.T) {
	var limiter *Limiter
	d, err := limiter.Check(context.Background(), "x")
	require.Error(t, err)
	require.True(t, d.Allowed)
}

func TestKeyDefaultsToUnknown(t *testing.T) {
	limiter := New(NewMemoryStore(0), core.CategoryConsultation)
	require.Equal(t, "consultation:unknown", limiter.Key("  "))
	require.Equal(t, "consultation:1.2.3.4", limiter.Key("1.2.3.4"))
}

func TestDecisionRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := Decision{Allowed: false, ResetAt: now.Add(90 * time.Second)}
	require.Equal(t, 90*time.Second, d.RetryAfter(now))
	require.Zero(t, Decision{Allowed: true, ResetAt: now.Add(time.Minute)}.RetryAfter(now))
}
