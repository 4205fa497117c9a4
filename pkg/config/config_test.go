package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, ":8001", c.API.Listen)
	assert.Equal(t, []string{"*"}, c.API.CORSOrigins)
	assert.Equal(t, "zodic_session", c.Web.CookieName)
	assert.Equal(t, 15*time.Second, c.Web.MarketCacheTTL)
	require.NoError(t, c.Validate())
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	p := writeFile(t, "zodic.yaml", `
log:
  level: debug
api:
  admin_emails: [ops@zodic.in]
web:
  backend_url: http://api.internal:8001
  market_cache_ttl: 30s
metrics_listen: 127.0.0.1:9100
`)
	t.Setenv("ZODIC_PUBLIC_URL", "https://zodic.example")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, []string{"ops@zodic.in"}, c.API.AdminEmails)
	assert.Equal(t, "http://api.internal:8001", c.Web.BackendURL)
	assert.Equal(t, 30*time.Second, c.Web.MarketCacheTTL)
	assert.Equal(t, "https://zodic.example", c.Web.PublicURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.API.CORSOrigins)
	assert.Equal(t, "127.0.0.1:9100", c.MetricsListen)
}

func TestLoadJSONDurations(t *testing.T) {
	p := writeFile(t, "zodic.json", `{
	"api": {"auth_rate_limit": 12, "cookie_insecure": true, "admin_emails": ["ops@zodic.in"]},
	"web": {"market_cache_ttl": "30s", "live_market_interval": "2s", "request_timeout": "4s", "backend_retries": 3}
}`)
	t.Setenv("ZODIC_WEB_REQUEST_TIMEOUT", "7s")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Web.MarketCacheTTL)
	assert.Equal(t, 2*time.Second, c.Web.LiveMarketInterval)
	assert.Equal(t, 7*time.Second, c.Web.RequestTimeout)
	assert.Equal(t, 3, c.Web.BackendRetries)
	assert.Equal(t, 12, c.API.AuthRateLimit)
	assert.True(t, c.API.CookieInsecure)
	assert.Equal(t, []string{"ops@zodic.in"}, c.API.AdminEmails)

	_, err = Load(writeFile(t, "bad.json", `{"web": {"market_cache_ttl": "soon"}}`))
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "zodic.toml", "x=1"))
		assert.Error(t, err)
	})
	t.Run("relative backend url", func(t *testing.T) {
		_, err := Load(writeFile(t, "zodic.yaml", "web:\n  backend_url: /api\n"))
		assert.Error(t, err)
	})
	t.Run("cookie clash", func(t *testing.T) {
		_, err := Load(writeFile(t, "zodic.json", `{"web":{"cookie_name":"session_token"}}`))
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
