// Package token implements the stateless admin session token:
//
//	base64url(payload) "." base64url(HMAC-SHA256(base64url(payload), secret))
//
// The payload carries the session id, user, issue time, expiry and whether the
// second factor has been verified. Tokens cannot be revoked by the codec itself;
// callers keep a revocation marker keyed by session id when they need that.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MinSecretLen is the shortest signing secret accepted.
const MinSecretLen = 32

var (
	// ErrInvalid covers every verification failure. Callers must not
	// distinguish between malformed, forged and expired tokens.
	ErrInvalid = errors.New("invalid session token")
	// ErrWeakSecret is returned by New for a secret shorter than MinSecretLen.
	ErrWeakSecret = errors.New("session secret too short")
)

// Claims is the signed payload.
type Claims struct {
	SessionID         string `json:"sid"`
	User              string `json:"user"`
	IssuedAt          int64  `json:"iat"`
	ExpiresAt         int64  `json:"exp"`
	TwoFactorVerified bool   `json:"tfa,omitempty"`
}

// Issued returns IssuedAt as a time.
func (c Claims) Issued() time.Time { return time.UnixMilli(c.IssuedAt) }

// Expires returns ExpiresAt as a time.
func (c Claims) Expires() time.Time { return time.UnixMilli(c.ExpiresAt) }

// Codec signs and verifies tokens.
type Codec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// New returns a Codec. maxAge bounds the time since issuance regardless of
// the expiry carried in the payload; zero disables that bound.
func New(secret string, maxAge time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	return &Codec{secret: []byte(secret), maxAge: maxAge, now: time.Now}, nil
}

// WithClock replaces the time source, for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// MaxAge returns the configured absolute lifetime.
func (c *Codec) MaxAge() time.Duration { return c.maxAge }

// Sign encodes and signs claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + base64.RawURLEncoding.EncodeToString(c.mac(payload)), nil
}

// Verify checks the signature and lifetime of tok and returns its claims.
func (c *Codec) Verify(tok string) (*Claims, error) {
	payload, sig, ok := strings.Cut(tok, ".")
	if !ok || payload == "" || sig == "" {
		return nil, ErrInvalid
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, ErrInvalid
	}
	if !hmac.Equal(got, c.mac(payload)) {
		return nil, ErrInvalid
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalid
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, ErrInvalid
	}
	if claims.User == "" || claims.SessionID == "" {
		return nil, ErrInvalid
	}

	now := c.now()
	if now.After(claims.Expires()) {
		return nil, ErrInvalid
	}
	if c.maxAge > 0 && now.Sub(claims.Issued()) > c.maxAge {
		return nil, ErrInvalid
	}
	return &claims, nil
}

func (c *Codec) mac(payload string) []byte {
	m := hmac.New(sha256.New, c.secret)
	_, _ = m.Write([]byte(payload))
	return m.Sum(nil)
}
