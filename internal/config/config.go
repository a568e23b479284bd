// Package config loads the service configuration from an optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"quizfest/internal/app"
	"quizfest/internal/security/token"
	"quizfest/internal/security/totp"

	"gopkg.in/yaml.v3"
)

// RateLimit overrides one rate-limit policy.
type RateLimit struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
		// EventName is used in confirmation emails and TOTP provisioning.
		EventName string `yaml:"event_name"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		WebDir             string   `yaml:"web_dir"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// ForceHTTPS defaults to true in prod.
		ForceHTTPS     *bool `yaml:"force_https"`
		TrustProxy     bool  `yaml:"trust_proxy"`
		MetricsEnabled bool  `yaml:"metrics_enabled"`
	} `yaml:"server"`

	Admin struct {
		Username      string `yaml:"username"`
		Password      string `yaml:"password"`
		TOTPSecret    string `yaml:"totp_secret"`
		SessionSecret string `yaml:"session_secret"`
		AllowBulkList bool   `yaml:"allow_bulk_listing"`
	} `yaml:"admin"`

	Session struct {
		TTL     time.Duration `yaml:"ttl"`
		MaxAge  time.Duration `yaml:"max_age"`
		Rolling bool          `yaml:"rolling"`
		// CookieSecure defaults to true in prod.
		CookieSecure *bool `yaml:"cookie_secure"`
	} `yaml:"session"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Rate struct {
		// memory | redis
		Store string `yaml:"store"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Limits map[string]RateLimit `yaml:"limits"`
	} `yaml:"rate"`

	SMTP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		User string `yaml:"user"`
		Pass string `yaml:"pass"`
		From string `yaml:"from"`
	} `yaml:"smtp"`

	Sheets struct {
		SpreadsheetID string `yaml:"spreadsheet_id"`
		ClientEmail   string `yaml:"client_email"`
		PrivateKey    string `yaml:"private_key"`
	} `yaml:"sheets"`

	OIDC struct {
		Issuer       string `yaml:"issuer"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURL  string `yaml:"redirect_url"`
		AdminEmail   string `yaml:"admin_email"`
	} `yaml:"oidc"`

	// envErrs holds environment values that were set but did not parse.
	envErrs []error
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	c := &Config{}
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.App.EventName = "Quiz Fest"
	c.Server.Addr = ":5000"
	c.Server.WebDir = "web"
	c.Server.MetricsEnabled = true
	c.Session.TTL = 2 * time.Hour
	c.Session.MaxAge = 24 * time.Hour
	c.Session.Rolling = true
	c.Storage.Driver = "memory"
	c.Rate.Store = "memory"
	c.Rate.Redis.Prefix = "quizfest"
	return c
}

// Load reads path (when non-empty) over the defaults and then applies the
// environment. It does not validate; call Validate.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	return c, nil
}

// Production reports whether the service runs in prod mode.
func (c *Config) Production() bool {
	e := strings.ToLower(c.App.Env)
	return e == "prod" || e == "production"
}

// CookieSecure resolves the Secure cookie flag.
func (c *Config) CookieSecure() bool {
	if c.Session.CookieSecure != nil {
		return *c.Session.CookieSecure
	}
	return c.Production()
}

// ForceHTTPS resolves the HTTPS redirect.
func (c *Config) ForceHTTPS() bool {
	if c.Server.ForceHTTPS != nil {
		return *c.Server.ForceHTTPS
	}
	return c.Production()
}

// SSOEnabled reports whether the OIDC login is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDC.Issuer != "" && c.OIDC.ClientID != "" && c.OIDC.AdminEmail != ""
}

// RatePolicies merges the configured limits over app.DefaultPolicies.
// A zero limit or window keeps the default for that field.
func (c *Config) RatePolicies() app.Policies {
	p := app.DefaultPolicies()
	for route, o := range c.Rate.Limits {
		l, ok := p[route]
		if !ok {
			continue
		}
		if o.Limit > 0 {
			l.Max = o.Limit
		}
		if o.Window > 0 {
			l.Window = o.Window
		}
		p[route] = l
	}
	return p
}

// MissingError lists required settings that are absent. The names are for
// the server log only.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Names, ", ")
}

// Validate checks that the service can start safely.
func (c *Config) Validate() error {
	var missing []string
	req := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	req("ADMIN_USERNAME", c.Admin.Username)
	req("ADMIN_PASSWORD", c.Admin.Password)
	req("ADMIN_SESSION_SECRET", c.Admin.SessionSecret)
	if c.Storage.Driver == "postgres" {
		req("DATABASE_URL", c.Storage.DSN)
	}
	if c.Rate.Store == "redis" {
		req("REDIS_ADDR", c.Rate.Redis.Addr)
	}
	if len(missing) > 0 {
		if len(c.envErrs) > 0 {
			return errors.Join(append(c.envErrs, &MissingError{Names: missing})...)
		}
		return &MissingError{Names: missing}
	}

	errs := append([]error(nil), c.envErrs...)
	if len(c.Admin.SessionSecret) < token.MinSecretLen {
		errs = append(errs, fmt.Errorf("ADMIN_SESSION_SECRET must be at least %d bytes", token.MinSecretLen))
	}
	if c.Admin.TOTPSecret != "" && !totp.ValidSecret(c.Admin.TOTPSecret) {
		errs = append(errs, errors.New("ADMIN_TOTP_SECRET is not valid base32"))
	}
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	switch c.Rate.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_STORE %q", c.Rate.Store))
	}
	if c.Session.TTL <= 0 || c.Session.MaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_TTL and SESSION_MAX_AGE must be positive"))
	} else if c.Session.TTL > c.Session.MaxAge {
		errs = append(errs, errors.New("SESSION_TTL must not exceed SESSION_MAX_AGE"))
	}
	for route, l := range c.RatePolicies() {
		if l.Max <= 0 || l.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit %s must be positive", route))
		}
	}
	return errors.Join(errs...)
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func (c *Config) getEnvInt(key string) (int, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Errorf("%s: %q is not an integer", key, s))
		return 0, false
	}
	return i, true
}

func (c *Config) getEnvBool(key string) (bool, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Errorf("%s: %q is not a boolean", key, s))
		return false, false
	}
	return b, true
}

func (c *Config) getEnvDur(key string) (time.Duration, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Errorf("%s: %q is not a duration (e.g. 30m, 2h)", key, s))
		return 0, false
	}
	return d, true
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// RateEnvPrefix returns the environment prefix for a rate-limit route, e.g.
// RATE_ADMIN_2FA_VERIFY for admin.2fa.verify.
func RateEnvPrefix(route string) string {
	return "RATE_" + strings.ToUpper(strings.ReplaceAll(route, ".", "_"))
}

func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("NODE_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("EVENT_NAME"); ok {
		c.App.EventName = v
	}

	// SERVER
	if v, ok := getEnvStr("PORT"); ok {
		c.Server.Addr = ":" + strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("WEB_DIR"); ok {
		c.Server.WebDir = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := c.getEnvBool("FORCE_HTTPS"); ok {
		c.Server.ForceHTTPS = &v
	}
	if v, ok := c.getEnvBool("TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}
	if v, ok := c.getEnvBool("METRICS_ENABLED"); ok {
		c.Server.MetricsEnabled = v
	}

	// ADMIN
	if v, ok := getEnvStr("ADMIN_USERNAME"); ok {
		c.Admin.Username = v
	}
	if v, ok := getEnvStr("ADMIN_PASSWORD"); ok {
		c.Admin.Password = v
	}
	if v, ok := getEnvStr("ADMIN_TOTP_SECRET"); ok {
		c.Admin.TOTPSecret = strings.ToUpper(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("ADMIN_SESSION_SECRET"); ok {
		c.Admin.SessionSecret = v
	}
	if v, ok := c.getEnvBool("ALLOW_BULK_LISTING"); ok {
		c.Admin.AllowBulkList = v
	}

	// SESSION
	if v, ok := c.getEnvDur("SESSION_TTL"); ok {
		c.Session.TTL = v
	}
	if v, ok := c.getEnvDur("SESSION_MAX_AGE"); ok {
		c.Session.MaxAge = v
	}
	if v, ok := c.getEnvBool("SESSION_ROLLING"); ok {
		c.Session.Rolling = v
	}
	if v, ok := c.getEnvBool("COOKIE_SECURE"); ok {
		c.Session.CookieSecure = &v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}

	// RATE
	if v, ok := getEnvStr("RATE_STORE"); ok {
		c.Rate.Store = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := c.getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Rate.Redis.Prefix = v
	}
	routes := make([]string, 0, len(app.DefaultPolicies()))
	for route := range app.DefaultPolicies() {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		prefix := RateEnvPrefix(route)
		o := c.Rate.Limits[route]
		changed := false
		if v, ok := c.getEnvInt(prefix + "_LIMIT"); ok {
			o.Limit, changed = v, true
		}
		if v, ok := c.getEnvDur(prefix + "_WINDOW"); ok {
			o.Window, changed = v, true
		}
		if changed {
			if c.Rate.Limits == nil {
				c.Rate.Limits = map[string]RateLimit{}
			}
			c.Rate.Limits[route] = o
		}
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := c.getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.SMTP.User = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.SMTP.Pass = v
	}
	if v, ok := getEnvStr("FROM_EMAIL"); ok {
		c.SMTP.From = v
	}

	// SHEETS
	if v, ok := getEnvStr("GOOGLE_SHEETS_ID"); ok {
		c.Sheets.SpreadsheetID = v
	}
	if v, ok := getEnvStr("GOOGLE_SERVICE_ACCOUNT_EMAIL"); ok {
		c.Sheets.ClientEmail = v
	}
	if v, ok := getEnvStr("GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY"); ok {
		c.Sheets.PrivateKey = v
	}

	// OIDC
	if v, ok := getEnvStr("OIDC_ISSUER"); ok {
		c.OIDC.Issuer = v
	}
	if v, ok := getEnvStr("OIDC_CLIENT_ID"); ok {
		c.OIDC.ClientID = v
	}
	if v, ok := getEnvStr("OIDC_CLIENT_SECRET"); ok {
		c.OIDC.ClientSecret = v
	}
	if v, ok := getEnvStr("OIDC_REDIRECT_URL"); ok {
		c.OIDC.RedirectURL = v
	}
	if v, ok := getEnvStr("OIDC_ADMIN_EMAIL"); ok {
		c.OIDC.AdminEmail = v
	}
}
