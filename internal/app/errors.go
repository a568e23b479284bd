package app

import (
	"errors"
	"sort"
	"strings"

	"quizfest/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidSession covers missing, malformed, forged, revoked and expired sessions.
	ErrInvalidSession = errors.New("authentication required")
	// ErrTwoFactorRequired indicates a session that still has to pass TOTP.
	ErrTwoFactorRequired = errors.New("two-factor verification required")
	// ErrInvalidTwoFactor indicates a wrong, expired or replayed TOTP code.
	ErrInvalidTwoFactor = errors.New("invalid verification code")
	// ErrTwoFactorNotEnabled is returned when verifying TOTP without a configured secret.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication is not enabled")
	// ErrInvalidPassword is the step-up re-authentication failure.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrBulkListingDisabled is returned when raw bulk listing is turned off.
	ErrBulkListingDisabled = errors.New("bulk listing is disabled; use search or export")
	// ErrNotFound indicates that no record matched.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited indicates that the caller exceeded a rate-limit policy.
	ErrRateLimited = errors.New("too many requests, please try again later")
	// ErrDuplicate indicates that a unique field is already registered.
	ErrDuplicate = domain.ErrDuplicate
)

// ValidationError carries per-field messages that are safe to return to the client.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
