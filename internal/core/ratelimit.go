package core

import "time"

// RateLimitEntry is the fixed-window counter kept for one client key.
type RateLimitEntry struct {
	Key     string    `json:"key"`
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Expired reports whether the window has elapsed at now.
func (e RateLimitEntry) Expired(now time.Time) bool {
	return now.After(e.ResetAt)
}
