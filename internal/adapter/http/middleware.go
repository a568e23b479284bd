package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"quizfest/internal/app"
	"quizfest/internal/domain"
	"quizfest/internal/logger"
	"quizfest/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const sessionContextKey contextKey = "session"

func withSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// sessionFrom returns the authenticated session, or nil.
func sessionFrom(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionContextKey).(*domain.Session)
	return sess
}

// loggingMiddleware logs method, path, status and latency of every request.
// Bodies and query strings are never logged.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := s.log.With(logger.RequestID(middleware.GetReqID(r.Context())), logger.ClientIP(clientIP(r)))
		r = r.WithContext(logger.ToContext(r.Context(), reqLog))

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		reqLog.Info("request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(status),
			logger.Duration(elapsed),
		)
	})
}

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"font-src 'self' https://fonts.gstatic.com; img-src 'self' data: https:; connect-src 'self'; frame-ancestors 'none'"

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		if s.cfg.Production {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// httpsRedirect sends plain-http requests, as reported by the proxy, to https.
func httpsRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "http") {
			http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originCheck logs state-changing admin requests whose Origin (or Referer,
// when Origin is absent) is neither the serving host nor an allowed origin,
// and those that carry neither header.
func (s *Server) originCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = refererOrigin(r.Header.Get("Referer"))
			}
			switch {
			case origin == "":
				logger.From(r.Context()).Warn("admin request without origin or referer",
					logger.Path(r.URL.Path), logger.ClientIP(clientIP(r)))
			case !s.originAllowed(origin, r.Host):
				logger.From(r.Context()).Warn("admin request from unexpected origin",
					zap.String("origin", origin), logger.Path(r.URL.Path))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func refererOrigin(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ref
	}
	return u.Scheme + "://" + u.Host
}

func (s *Server) originAllowed(origin, host string) bool {
	if slices.Contains(s.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == host
}

// rateLimit applies the named policy keyed by client address. A store failure
// rejects the request.
func (s *Server) rateLimit(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := s.limiter.Allow(r.Context(), route, clientIP(r))
			if err != nil {
				logger.From(r.Context()).Error("rate limiter unavailable", logger.Route(route), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "service temporarily unavailable"})
				return
			}
			if !d.Allowed {
				metrics.RateLimitRejections.WithLabelValues(route).Inc()
				logger.From(r.Context()).Warn("rate limit exceeded",
					logger.Route(route), zap.Int("retry_after_s", app.RetryAfter(d, s.now())))
				writeError(w, http.StatusTooManyRequests, app.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loadSession resolves the session cookie, if any, and applies rolling
// renewal. Invalid cookies are cleared and the request continues without a
// session; a failing revocation store fails the request.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.cfg.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.auth.Authenticate(r.Context(), c.Value)
		if errors.Is(err, app.ErrInvalidSession) {
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}

		if tok, renewed, ok, err := s.auth.Refresh(sess); err != nil {
			logger.From(r.Context()).Warn("session renewal failed", zap.Error(err))
		} else if ok {
			s.setSessionCookie(w, tok, renewed.ExpiresAt)
			sess = renewed
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// requireSession rejects requests without a session, pending or not.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r.Context()) == nil {
			s.writeAppError(w, r, app.ErrInvalidSession)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePrivileged rejects requests without a fully authenticated session.
func (s *Server) requirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil {
			s.writeAppError(w, r, app.ErrInvalidSession)
			return
		}
		if !s.auth.Privileged(sess) {
			s.writeAppError(w, r, app.ErrTwoFactorRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
