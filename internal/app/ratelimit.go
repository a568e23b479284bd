package app

import (
	"context"
	"fmt"
	"time"

	"quizfest/internal/domain"
)

// Rate-limit policy keys.
const (
	RouteLogin          = "admin.login"
	RouteTwoFactor      = "admin.2fa.verify"
	RouteTwoFactorSetup = "admin.2fa.setup"
	RouteSearch         = "admin.search"
	RouteList           = "admin.list"
	RouteExport         = "admin.export"
	RouteContactList    = "admin.contact"
	RouteRegister       = "public.register"
	RouteContact        = "public.contact"
)

// Limit is a fixed-window policy: at most Max hits per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Policies maps a route key to its limit.
type Policies map[string]Limit

// DefaultPolicies returns the built-in limits.
func DefaultPolicies() Policies {
	return Policies{
		RouteLogin:          {Max: 5, Window: 15 * time.Minute},
		RouteTwoFactor:      {Max: 5, Window: 15 * time.Minute},
		RouteTwoFactorSetup: {Max: 5, Window: 15 * time.Minute},
		RouteSearch:         {Max: 20, Window: time.Minute},
		RouteList:           {Max: 10, Window: time.Minute},
		RouteExport:         {Max: 3, Window: time.Minute},
		RouteContactList:    {Max: 10, Window: time.Minute},
		RouteRegister:       {Max: 3, Window: time.Minute},
		RouteContact:        {Max: 3, Window: time.Minute},
	}
}

// RateLimiter applies fixed-window limits keyed by route and client identity.
// Counter state lives in the injected store so that several instances can
// share it.
type RateLimiter struct {
	store    domain.RateLimitStore
	policies Policies
	now      func() time.Time
}

// NewRateLimiter creates a limiter. Routes missing from policies fall back to
// DefaultPolicies.
func NewRateLimiter(store domain.RateLimitStore, policies Policies) *RateLimiter {
	merged := DefaultPolicies()
	for k, v := range policies {
		merged[k] = v
	}
	return &RateLimiter{store: store, policies: merged, now: time.Now}
}

// Policy returns the limit for route.
func (l *RateLimiter) Policy(route string) (Limit, bool) {
	p, ok := l.policies[route]
	return p, ok
}

// Allow records one hit for (route, clientID) under the route's policy.
func (l *RateLimiter) Allow(ctx context.Context, route, clientID string) (domain.RateLimitDecision, error) {
	p, ok := l.policies[route]
	if !ok {
		return domain.RateLimitDecision{}, fmt.Errorf("no rate-limit policy for %q", route)
	}
	return l.AllowN(ctx, route, clientID, p.Max, p.Window)
}

// AllowN records one hit for (route, clientID) with an explicit limit.
// Store failures are returned to the caller, which must fail closed.
func (l *RateLimiter) AllowN(ctx context.Context, route, clientID string, max int, window time.Duration) (domain.RateLimitDecision, error) {
	if clientID == "" {
		clientID = "unknown"
	}
	d, err := l.store.Hit(ctx, "rl:"+route+":"+clientID, max, window, l.now())
	if err != nil {
		return domain.RateLimitDecision{}, fmt.Errorf("rate limit store: %w", err)
	}
	return d, nil
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func RetryAfter(d domain.RateLimitDecision, now time.Time) int {
	secs := int((d.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
