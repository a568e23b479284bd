package memory

import (
	"context"
	"sync"
	"time"

	"quizfest/internal/domain"

	"github.com/patrickmn/go-cache"
)

// DefaultSweepInterval is how often expired entries are purged.
const DefaultSweepInterval = time.Minute

// Store keeps rate-limit windows and markers in process memory. Entries expire
// with their window or TTL and are swept periodically, so idle clients do not
// accumulate. It is only correct for a single instance.
type Store struct {
	mu      sync.Mutex
	windows *cache.Cache
	markers *cache.Cache
}

var _ domain.RateLimitStore = (*Store)(nil)
var _ domain.MarkerStore = (*Store)(nil)

// NewStore creates a store that sweeps expired entries every sweep.
func NewStore(sweep time.Duration) *Store {
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	return &Store{
		windows: cache.New(cache.NoExpiration, sweep),
		markers: cache.New(cache.NoExpiration, sweep),
	}
}

// Hit implements domain.RateLimitStore.
func (s *Store) Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.windows.Get(key); ok {
		e := v.(*domain.RateLimitEntry)
		if !now.After(e.ResetAt) {
			if e.Count >= max {
				return domain.RateLimitDecision{Allowed: false, Count: e.Count, ResetAt: e.ResetAt}, nil
			}
			e.Count++
			return domain.RateLimitDecision{Allowed: true, Count: e.Count, ResetAt: e.ResetAt}, nil
		}
	}

	if max < 1 {
		return domain.RateLimitDecision{Allowed: false, ResetAt: now.Add(window)}, nil
	}
	e := &domain.RateLimitEntry{Count: 1, ResetAt: now.Add(window)}
	s.windows.Set(key, e, window)
	return domain.RateLimitDecision{Allowed: true, Count: 1, ResetAt: e.ResetAt}, nil
}

// Mark implements domain.MarkerStore.
func (s *Store) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.markers.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Marked implements domain.MarkerStore.
func (s *Store) Marked(ctx context.Context, key string) (bool, error) {
	_, ok := s.markers.Get(key)
	return ok, nil
}

// Len returns the number of live rate-limit windows.
func (s *Store) Len() int {
	return s.windows.ItemCount()
}

// Sweep purges expired entries immediately.
func (s *Store) Sweep() {
	s.windows.DeleteExpired()
	s.markers.DeleteExpired()
}
