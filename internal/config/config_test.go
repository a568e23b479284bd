package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quizfest/internal/app"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("ADMIN_SESSION_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "NODE_ENV", "PORT", "ADDR", "COOKIE_SECURE", "STORAGE_DRIVER",
		"RATE_STORE", "SESSION_TTL", "SESSION_MAX_AGE", "SESSION_ROLLING", "ALLOW_BULK_LISTING"} {
		t.Setenv(k, "")
	}
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Rate.Store)
	assert.Equal(t, 2*time.Hour, c.Session.TTL)
	assert.Equal(t, 24*time.Hour, c.Session.MaxAge)
	assert.True(t, c.Session.Rolling)
	assert.False(t, c.Production())
	assert.False(t, c.CookieSecure())
	assert.False(t, c.Admin.AllowBulkList)
	assert.Equal(t, app.DefaultPolicies(), c.RatePolicies())
}

func TestLoad_Env(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "PROD")
	t.Setenv("PORT", "8081")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_ADMIN_LOGIN_LIMIT", "7")
	t.Setenv("RATE_ADMIN_2FA_VERIFY_WINDOW", "5m")
	t.Setenv("ADMIN_TOTP_SECRET", " jbswy3dpehpk3pxp ")

	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.True(t, c.Production())
	assert.True(t, c.CookieSecure())
	assert.True(t, c.ForceHTTPS())
	assert.Equal(t, ":8081", c.Server.Addr)
	assert.Equal(t, 30*time.Minute, c.Session.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.CORSAllowedOrigins)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", c.Admin.TOTPSecret)

	p := c.RatePolicies()
	assert.Equal(t, app.Limit{Max: 7, Window: 15 * time.Minute}, p[app.RouteLogin])
	assert.Equal(t, app.Limit{Max: 5, Window: 5 * time.Minute}, p[app.RouteTwoFactor])
	assert.Equal(t, app.Limit{Max: 20, Window: time.Minute}, p[app.RouteSearch])
}

func TestLoad_CookieSecureOverride(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("FORCE_HTTPS", "false")

	c, err := Load("")
	require.NoError(t, err)
	assert.False(t, c.CookieSecure())
	assert.False(t, c.ForceHTTPS())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  addr: ":9000"
admin:
  username: fileadmin
  password: filepass
  session_secret: "` + testSecret + `"
storage:
  driver: postgres
  dsn: postgres://localhost/quizfest
rate:
  limits:
    admin.export:
      limit: 1
      window: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("ADMIN_USERNAME", "envadmin")

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, "envadmin", c.Admin.Username)
	assert.Equal(t, "filepass", c.Admin.Password)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, app.Limit{Max: 1, Window: 2 * time.Minute}, c.RatePolicies()[app.RouteExport])
	assert.True(t, c.Session.Rolling, "defaults survive a partial file")
}

func TestLoad_BadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		missing []string
		wantErr string
	}{
		{
			name:    "nothing set",
			mutate:  func(c *Config) { c.Admin.Username, c.Admin.Password, c.Admin.SessionSecret = "", "", "" },
			missing: []string{"ADMIN_USERNAME", "ADMIN_PASSWORD", "ADMIN_SESSION_SECRET"},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			missing: []string{"DATABASE_URL"},
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Rate.Store = "redis" },
			missing: []string{"REDIS_ADDR"},
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.Admin.SessionSecret = "short" },
			wantErr: "ADMIN_SESSION_SECRET",
		},
		{
			name:    "bad totp secret",
			mutate:  func(c *Config) { c.Admin.TOTPSecret = "not base32!" },
			wantErr: "ADMIN_TOTP_SECRET",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: "STORAGE_DRIVER",
		},
		{
			name:    "ttl above max age",
			mutate:  func(c *Config) { c.Session.TTL = 48 * time.Hour },
			wantErr: "SESSION_TTL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Admin.Username = "admin"
			c.Admin.Password = "pw"
			c.Admin.SessionSecret = testSecret
			tt.mutate(c)

			err := c.Validate()
			require.Error(t, err)
			if tt.missing != nil {
				var me *MissingError
				require.True(t, errors.As(err, &me))
				assert.Equal(t, tt.missing, me.Names)
				return
			}
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestRateEnvPrefix(t *testing.T) {
	assert.Equal(t, "RATE_ADMIN_2FA_VERIFY", RateEnvPrefix(app.RouteTwoFactor))
	assert.Equal(t, "RATE_PUBLIC_REGISTER", RateEnvPrefix(app.RouteRegister))
}

func TestLoad_UnparseableEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "2hours")
	t.Setenv("COOKIE_SECURE", "yes")
	t.Setenv("SMTP_PORT", "five-eight-seven")
	t.Setenv("RATE_ADMIN_LOGIN_WINDOW", "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, c.Session.TTL, "bad value leaves the default")

	err = c.Validate()
	require.Error(t, err)
	for _, key := range []string{"SESSION_TTL", "COOKIE_SECURE", "SMTP_PORT"} {
		assert.Contains(t, err.Error(), key)
	}
	assert.Contains(t, err.Error(), `"2hours"`)
	assert.NotContains(t, err.Error(), "RATE_ADMIN_LOGIN_WINDOW")
}

func TestLoad_UnparseableEnvWithMissing(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("ADMIN_SESSION_SECRET", testSecret)
	t.Setenv("REDIS_DB", "zero")

	c, err := Load("")
	require.NoError(t, err)

	err = c.Validate()
	require.Error(t, err)
	var me *MissingError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, []string{"ADMIN_USERNAME"}, me.Names)
	assert.Contains(t, err.Error(), "REDIS_DB")
}
