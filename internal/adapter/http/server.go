package adapthttp

import (
	"net/http"
	"time"

	"quizfest/internal/app"
	"quizfest/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultCookieName is the admin session cookie.
const DefaultCookieName = "quizfest_session"

// Config holds the transport settings.
type Config struct {
	// WebDir is served as a single-page app; empty disables it.
	WebDir     string
	CookieName string
	// CookieSecure sets the Secure flag on session cookies.
	CookieSecure bool
	// Production enables HSTS.
	Production bool
	// ForceHTTPS redirects requests that a proxy reports as plain http.
	ForceHTTPS bool
	// TrustProxy resolves the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy     bool
	AllowedOrigins []string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// SSO enables the OIDC login routes when set.
	SSO *SSO
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Services are the application services the adapter drives.
type Services struct {
	Auth          *app.AuthService
	Registrations *app.RegistrationService
	Exports       *app.ExportService
	Contacts      *app.ContactService
	Limiter       *app.RateLimiter
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth     *app.AuthService
	regs     *app.RegistrationService
	exports  *app.ExportService
	contacts *app.ContactService
	limiter  *app.RateLimiter
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

// New creates a Server wired to the given application services.
func New(svc Services, cfg Config) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	l := cfg.Logger
	if l == nil {
		l = logger.L()
	}
	return &Server{
		auth:     svc.Auth,
		regs:     svc.Registrations,
		exports:  svc.Exports,
		contacts: svc.Contacts,
		limiter:  svc.Limiter,
		cfg:      cfg,
		log:      l.Named("http"),
		now:      time.Now,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.securityHeaders)
	if s.cfg.ForceHTTPS {
		r.Use(httpsRedirect)
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(withNoCache)
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		api.With(s.rateLimit(app.RouteRegister)).Post("/registrations", s.handleRegister)
		api.Get("/registration-stats", s.handleStats)
		api.With(s.rateLimit(app.RouteContact)).Post("/contact", s.handleContactSubmit)

		api.Route("/admin", func(ad chi.Router) {
			ad.Use(s.originCheck)
			ad.Use(s.loadSession)

			ad.With(s.rateLimit(app.RouteLogin)).Post("/login", s.handleLogin)
			ad.Post("/logout", s.handleLogout)
			ad.Get("/me", s.handleMe)
			ad.With(s.rateLimit(app.RouteTwoFactor), s.requireSession).Post("/2fa/verify", s.handleTwoFactorVerify)

			if s.cfg.SSO != nil {
				ad.With(s.rateLimit(app.RouteLogin)).Get("/sso/login", s.handleSSOLogin)
				ad.With(s.rateLimit(app.RouteLogin)).Get("/sso/callback", s.handleSSOCallback)
			}

			ad.Group(func(p chi.Router) {
				p.Use(s.requirePrivileged)
				p.With(s.rateLimit(app.RouteTwoFactorSetup)).Post("/2fa/setup", s.handleTwoFactorSetup)
				p.With(s.rateLimit(app.RouteList)).Get("/registrations", s.handleListRegistrations)
				p.With(s.rateLimit(app.RouteSearch)).Get("/registrations/search/{term}", s.handleSearch)
				p.With(s.rateLimit(app.RouteExport)).Post("/export/csv", s.handleExport)
				p.With(s.rateLimit(app.RouteContactList)).Get("/contact", s.handleContactList)
			})
		})

		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		})
	})

	if s.cfg.WebDir != "" {
		r.Handle("/*", withNoCache(spaFromDisk(s.cfg.WebDir)))
	}
	return r
}
