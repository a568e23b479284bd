// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"quizfest/internal/app"
	"quizfest/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
)

const oauthStateCookie = "quizfest_oauth_state"

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := s.parseJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	res, err := s.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.setSessionCookie(w, res.Token, res.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"requiresTwoFactor": res.RequiresTwoFactor,
	})
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := s.parseJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	tok, sess, err := s.auth.VerifyTwoFactor(r.Context(), sessionFrom(r.Context()), req.Token, clientIP(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.setSessionCookie(w, tok, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := s.auth.SetupTwoFactor(r.Context(), sessionFrom(r.Context()), clientIP(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := sessionFrom(r.Context()); sess != nil {
		if err := s.auth.Logout(r.Context(), sess, clientIP(r)); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		s.writeAppError(w, r, app.ErrInvalidSession)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated":     s.auth.Privileged(sess),
		"user":              sess.User,
		"twoFactorEnabled":  s.auth.TwoFactorEnabled(),
		"twoFactorVerified": sess.TwoFactorVerified,
	})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/admin/sso",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.cfg.SSO.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(oauthStateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid state"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, MaxAge: -1, Path: "/api/admin/sso"})

	token, err := s.cfg.SSO.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.From(r.Context()).Warn("sso code exchange failed", zap.Error(err))
		s.writeAppError(w, r, app.ErrInvalidCredentials)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		s.writeAppError(w, r, app.ErrInvalidCredentials)
		return
	}

	idToken, err := s.cfg.SSO.Provider.Verifier(&oidc.Config{ClientID: s.cfg.SSO.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		logger.From(r.Context()).Warn("sso id token rejected", zap.Error(err))
		s.writeAppError(w, r, app.ErrInvalidCredentials)
		return
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err = idToken.Claims(&claims); err != nil {
		s.writeAppError(w, r, app.ErrInvalidCredentials)
		return
	}
	if !claims.EmailVerified || s.cfg.SSO.AdminEmail == "" ||
		!app.ConstantTimeCompare(strings.ToLower(claims.Email), strings.ToLower(s.cfg.SSO.AdminEmail)) {
		logger.From(r.Context()).Warn("sso identity is not the admin")
		s.writeAppError(w, r, app.ErrInvalidCredentials)
		return
	}

	res, err := s.auth.LoginIdentity(r.Context(), clientIP(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.setSessionCookie(w, res.Token, res.Session.ExpiresAt)

	target := "/admin"
	if res.RequiresTwoFactor {
		target = "/admin?step=2fa"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
