// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// AdminPrincipal is the single admin identity loaded from configuration at
// startup. It is immutable for the lifetime of the process.
type AdminPrincipal struct {
	Username string
	// Password is either the plaintext secret or a bcrypt hash.
	Password string
	// TOTPSecret is the base32 TOTP secret; empty disables two-factor.
	TOTPSecret string
}

// TwoFactorEnabled reports whether logins must pass a TOTP check.
func (p AdminPrincipal) TwoFactorEnabled() bool {
	return p.TOTPSecret != ""
}

// Session is the decoded state of an admin session token.
type Session struct {
	ID                string
	User              string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	TwoFactorVerified bool
}

// Privileged reports whether the session may perform admin operations given
// whether two-factor is enabled for the account.
func (s *Session) Privileged(twoFactorEnabled bool) bool {
	if s == nil || s.User == "" {
		return false
	}
	return !twoFactorEnabled || s.TwoFactorVerified
}

// MarkerStore records short-lived markers (revoked session ids, consumed TOTP
// codes). Implementations must make Mark atomic across callers.
type MarkerStore interface {
	// Mark sets key for ttl. It reports false when the key was already set.
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Marked reports whether key is currently set.
	Marked(ctx context.Context, key string) (bool, error)
}
