// Package app holds the application services and business logic.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quizfest/internal/domain"
	"quizfest/internal/security/token"
	"quizfest/internal/security/totp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	revokedPrefix  = "revoked:"
	totpUsedPrefix = "totp-used:"

	// maxAuditUsername bounds the attempted username written to the audit log.
	maxAuditUsername = 64
)

// AuthConfig tunes session issuance.
type AuthConfig struct {
	// SessionTTL is the idle lifetime of a token.
	SessionTTL time.Duration
	// Rolling re-issues tokens that are past half their TTL, capped by the
	// codec's max age.
	Rolling bool
	// Issuer is shown in authenticator apps.
	Issuer string
	// Skew is the number of TOTP steps accepted on each side of now.
	Skew uint
}

// DefaultAuthConfig returns the production defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		SessionTTL: 2 * time.Hour,
		Rolling:    true,
		Issuer:     "Quiz Festival Admin",
		Skew:       totp.DefaultSkew,
	}
}

// LoginResult is returned on successful password or SSO login.
type LoginResult struct {
	Token             string
	Session           *domain.Session
	RequiresTwoFactor bool
}

// AuthService handles admin authentication and session management.
type AuthService struct {
	admin   domain.AdminPrincipal
	codec   *token.Codec
	markers domain.MarkerStore
	audit   *Auditor
	cfg     AuthConfig
	now     func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(admin domain.AdminPrincipal, codec *token.Codec, markers domain.MarkerStore, audit *Auditor, cfg AuthConfig) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultAuthConfig().SessionTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultAuthConfig().Issuer
	}
	return &AuthService{
		admin:   admin,
		codec:   codec,
		markers: markers,
		audit:   audit,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests. The codec keeps its own clock.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// TwoFactorEnabled reports whether the admin has a TOTP secret configured.
func (s *AuthService) TwoFactorEnabled() bool {
	return s.admin.TwoFactorEnabled()
}

// Privileged reports whether sess may perform admin operations.
func (s *AuthService) Privileged(sess *domain.Session) bool {
	return sess.Privileged(s.admin.TwoFactorEnabled())
}

// Login verifies the admin credentials and issues a fresh session. When TOTP
// is enabled the session is pending until VerifyTwoFactor succeeds.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*LoginResult, error) {
	fe := fieldErrors{}
	if strings.TrimSpace(username) == "" {
		fe.add("username", "is required")
	}
	if password == "" {
		fe.add("password", "is required")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	if !VerifyCredentials(username, password, s.admin.Username, s.admin.Password) {
		s.audit.Record(ctx, Actor{User: auditUsername(username), ClientIP: clientIP}, ActionLogin, OutcomeFailure)
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, s.admin.Username, clientIP, ActionLogin)
}

// LoginIdentity issues a session for an identity already proven by an
// external provider. The provider's email must match the configured one; the
// caller checks that. TOTP still applies.
func (s *AuthService) LoginIdentity(ctx context.Context, clientIP string) (*LoginResult, error) {
	return s.issue(ctx, s.admin.Username, clientIP, ActionSSOLogin)
}

func (s *AuthService) issue(ctx context.Context, user, clientIP, action string) (*LoginResult, error) {
	now := s.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		User:      user,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	tok, err := s.sign(sess)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, Actor{User: user, ClientIP: clientIP}, action, OutcomeSuccess,
		zap.Bool("requires_two_factor", s.admin.TwoFactorEnabled()))
	return &LoginResult{
		Token:             tok,
		Session:           sess,
		RequiresTwoFactor: s.admin.TwoFactorEnabled(),
	}, nil
}

// Authenticate decodes a session token and rejects revoked sessions.
// Every token problem maps to ErrInvalidSession; store failures are returned
// wrapped so the caller can fail closed.
func (s *AuthService) Authenticate(ctx context.Context, tok string) (*domain.Session, error) {
	if tok == "" {
		return nil, ErrInvalidSession
	}
	claims, err := s.codec.Verify(tok)
	if err != nil {
		return nil, ErrInvalidSession
	}
	revoked, err := s.markers.Marked(ctx, revokedPrefix+claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidSession
	}
	return sessionFromClaims(claims), nil
}

// VerifyTwoFactor checks a TOTP code for a pending session. On success the
// pending session is revoked and a new verified session is issued. A code is
// accepted at most once inside its validity span.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, sess *domain.Session, code, clientIP string) (string, *domain.Session, error) {
	if sess == nil || sess.User == "" {
		return "", nil, ErrInvalidSession
	}
	if !s.admin.TwoFactorEnabled() {
		return "", nil, ErrTwoFactorNotEnabled
	}
	actor := Actor{User: sess.User, ClientIP: clientIP}

	code = strings.TrimSpace(code)
	if !totp.WellFormed(code) {
		s.audit.Record(ctx, actor, ActionTwoFactor, OutcomeFailure, zap.String("reason", "malformed"))
		return "", nil, &ValidationError{Fields: map[string]string{"token": fmt.Sprintf("must be %d digits", totp.Digits)}}
	}

	now := s.now()
	if !totp.Verify(s.admin.TOTPSecret, code, now, s.cfg.Skew) {
		s.audit.Record(ctx, actor, ActionTwoFactor, OutcomeFailure)
		return "", nil, ErrInvalidTwoFactor
	}

	span := time.Duration(2*s.cfg.Skew+1) * totp.Period * time.Second
	fresh, err := s.markers.Mark(ctx, totpUsedPrefix+sess.User+":"+code, span)
	if err != nil {
		return "", nil, fmt.Errorf("record totp use: %w", err)
	}
	if !fresh {
		s.audit.Record(ctx, actor, ActionTwoFactor, OutcomeFailure, zap.String("reason", "replay"))
		return "", nil, ErrInvalidTwoFactor
	}

	if err := s.revoke(ctx, sess); err != nil {
		return "", nil, err
	}
	next := &domain.Session{
		ID:                uuid.NewString(),
		User:              sess.User,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
		TwoFactorVerified: true,
	}
	tok, err := s.sign(next)
	if err != nil {
		return "", nil, err
	}
	s.audit.Record(ctx, actor, ActionTwoFactor, OutcomeSuccess)
	return tok, next, nil
}

// SetupTwoFactor generates a new TOTP secret for enrolment. The secret is
// not persisted: the operator copies it into ADMIN_TOTP_SECRET.
func (s *AuthService) SetupTwoFactor(ctx context.Context, sess *domain.Session, clientIP string) (*totp.Setup, error) {
	if !s.Privileged(sess) {
		return nil, ErrTwoFactorRequired
	}
	setup, err := totp.Generate(s.cfg.Issuer, sess.User)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, Actor{User: sess.User, ClientIP: clientIP}, ActionTwoFactorSetup, OutcomeSuccess)
	return setup, nil
}

// Logout revokes the session until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, sess *domain.Session, clientIP string) error {
	if sess == nil {
		return nil
	}
	if err := s.revoke(ctx, sess); err != nil {
		return err
	}
	s.audit.Record(ctx, Actor{User: sess.User, ClientIP: clientIP}, ActionLogout, OutcomeSuccess)
	return nil
}

// Refresh implements rolling sessions. When less than half of the TTL is
// left it returns a new token for the same session id with the expiry pushed
// out, never past IssuedAt plus the codec's max age. ok is false when no
// re-issue is due.
func (s *AuthService) Refresh(sess *domain.Session) (tok string, next *domain.Session, ok bool, err error) {
	if !s.cfg.Rolling || sess == nil {
		return "", nil, false, nil
	}
	now := s.now()
	if sess.ExpiresAt.Sub(now) >= s.cfg.SessionTTL/2 {
		return "", nil, false, nil
	}
	exp := now.Add(s.cfg.SessionTTL)
	if maxAge := s.codec.MaxAge(); maxAge > 0 {
		if limit := sess.IssuedAt.Add(maxAge); exp.After(limit) {
			exp = limit
		}
	}
	if !exp.After(sess.ExpiresAt) {
		return "", nil, false, nil
	}
	copied := *sess
	copied.ExpiresAt = exp
	tok, err = s.sign(&copied)
	if err != nil {
		return "", nil, false, err
	}
	return tok, &copied, true, nil
}

// auditUsername is the attempted username as written to the audit log:
// trimmed and bounded so oversized input cannot flood the log.
func auditUsername(u string) string {
	u = strings.TrimSpace(u)
	if r := []rune(u); len(r) > maxAuditUsername {
		return string(r[:maxAuditUsername]) + "..."
	}
	return u
}

func (s *AuthService) revoke(ctx context.Context, sess *domain.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	if _, err := s.markers.Mark(ctx, revokedPrefix+sess.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *AuthService) sign(sess *domain.Session) (string, error) {
	tok, err := s.codec.Sign(token.Claims{
		SessionID:         sess.ID,
		User:              sess.User,
		IssuedAt:          sess.IssuedAt.UnixMilli(),
		ExpiresAt:         sess.ExpiresAt.UnixMilli(),
		TwoFactorVerified: sess.TwoFactorVerified,
	})
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return tok, nil
}

func sessionFromClaims(c *token.Claims) *domain.Session {
	return &domain.Session{
		ID:                c.SessionID,
		User:              c.User,
		IssuedAt:          c.Issued(),
		ExpiresAt:         c.Expires(),
		TwoFactorVerified: c.TwoFactorVerified,
	}
}
