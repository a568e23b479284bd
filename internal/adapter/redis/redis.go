// Package redis implements the shared rate-limit and marker stores on Redis,
// so that several instances enforce the same limits and revocations.
package redis

import (
	"context"
	"fmt"
	"time"

	"quizfest/internal/domain"

	"github.com/redis/go-redis/v9"
)

// hitLua performs one fixed-window hit atomically.
// KEYS[1] = window key
// ARGV[1] = max hits
// ARGV[2] = window in milliseconds
//
// Returns {allowed (0|1), remaining ttl ms, count}.
var hitLua = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local cur = redis.call('GET', KEYS[1])
if not cur then
  if max < 1 then
    return {0, window, 0}
  end
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, window, 1}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
cur = tonumber(cur)
if cur >= max then
  return {0, ttl, cur}
end
cur = redis.call('INCR', KEYS[1])
return {1, ttl, cur}
`)

// Store implements domain.RateLimitStore and domain.MarkerStore.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ domain.RateLimitStore = (*Store)(nil)
var _ domain.MarkerStore = (*Store)(nil)

// New wraps client. Keys are namespaced under prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "quizfest"
	}
	return &Store{client: client, prefix: prefix}
}

// Options configures Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return c, nil
}

func (s *Store) key(k string) string {
	return s.prefix + ":" + k
}

// Hit implements domain.RateLimitStore. The window is anchored to the first
// hit and expires through the key TTL, so the server clock decides resets;
// now only anchors the returned ResetAt.
func (s *Store) Hit(ctx context.Context, key string, max int, window time.Duration, now time.Time) (domain.RateLimitDecision, error) {
	ms := window.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	res, err := hitLua.Run(ctx, s.client, []string{s.key(key)}, max, ms).Int64Slice()
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit hit: %w", err)
	}
	if len(res) != 3 {
		return domain.RateLimitDecision{}, fmt.Errorf("redis rate limit hit: unexpected reply %v", res)
	}
	return domain.RateLimitDecision{
		Allowed: res[0] == 1,
		Count:   int(res[2]),
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Mark implements domain.MarkerStore.
func (s *Store) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis mark: %w", err)
	}
	return ok, nil
}

// Marked implements domain.MarkerStore.
func (s *Store) Marked(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis marked: %w", err)
	}
	return n > 0, nil
}
