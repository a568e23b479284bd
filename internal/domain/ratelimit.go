package domain

import (
	"context"
	"time"
)

// RateLimitEntry is the fixed-window state for one (route, client) key.
type RateLimitEntry struct {
	Count   int
	ResetAt time.Time
}

// RateLimitDecision is the outcome of a single hit.
type RateLimitDecision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// RateLimitStore is the port for rate-limit counter state. Hit must perform
// the check-and-increment atomically: a new window starts with count 1 on the
// first hit or once now is past ResetAt; within a window the count is
// incremented only while it is below max, and a rejected hit leaves the entry
// unchanged.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (RateLimitDecision, error)
}
