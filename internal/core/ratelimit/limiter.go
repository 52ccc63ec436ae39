// Package ratelimit implements fixed-window request limiting per client key.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tacopii/tacopii/internal/core"
)

// DefaultWindow is the window length for every category.
const DefaultWindow = time.Hour

// DefaultLimits are the per-window request budgets for each category.
var DefaultLimits = map[core.Category]int{
	core.CategoryReview:       50,
	core.CategoryConsultation: 100,
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Store keeps window state. Hit must perform the check and the increment
// as one atomic step for the given key.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (core.RateLimitEntry, bool, error)
	List(ctx context.Context, prefix string) ([]core.RateLimitEntry, error)
	Reset(ctx context.Context, key string) error
	Name() string
}

// Limiter applies one limit to one category of requests.
type Limiter struct {
	Store    Store
	Category core.Category
	Limit    int
	Window   time.Duration
	Clock    func() time.Time
}

// New returns a limiter for category using the default limit and window.
func New(store Store, category core.Category) *Limiter {
	return &Limiter{
		Store:    store,
		Category: category,
		Limit:    DefaultLimits[category],
		Window:   DefaultWindow,
	}
}

// Check records a request from clientKey and reports whether it is allowed.
func (l *Limiter) Check(ctx context.Context, clientKey string) (Decision, error) {
	if l == nil || l.Store == nil {
		return Decision{Allowed: true}, errors.New("rate limiter not configured")
	}

	limit := l.Limit
	if limit <= 0 {
		limit = 1
	}
	window := l.Window
	if window <= 0 {
		window = DefaultWindow
	}

	entry, allowed, err := l.Store.Hit(ctx, l.Key(clientKey), limit, window, l.now())
	if err != nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, err
	}

	decision := Decision{
		Allowed: allowed,
		Limit:   limit,
		ResetAt: entry.ResetAt,
	}
	if allowed {
		decision.Remaining = limit - entry.Count
	}
	return decision, nil
}

// Key namespaces a client key by category.
func (l *Limiter) Key(clientKey string) string {
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}
	if l == nil || l.Category == "" {
		return clientKey
	}
	return string(l.Category) + ":" + clientKey
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// hit applies the window rules to an existing entry. It is shared by stores
// that hold the entry in process memory.
func hit(entry *core.RateLimitEntry, found bool, key string, limit int, window time.Duration, now time.Time) bool {
	if !found || entry.Expired(now) {
		*entry = core.RateLimitEntry{Key: key, Count: 1, ResetAt: now.Add(window)}
		return true
	}
	if entry.Count >= limit {
		return false
	}
	entry.Count++
	return true
}
