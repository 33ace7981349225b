package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://auth.e-sdy.mn/realms/sdyn", cfg.Auth.IssuerURL())
	assert.Equal(t, ":3001", cfg.For(AppAdmin).ListenAddr)
	assert.Equal(t, "sdyn-web", cfg.For(AppMember).ClientID)
}

func TestParseFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdyn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(`
api:
  base_url: https://api.example.mn/
  timeout: 5s
auth:
  url: https://id.example.mn
  realm: party
  refresh_tokens: false
session:
  store: redis
  redis_addr: redis:6379
page_size: 25
`)), 0o600))

	t.Setenv("SDYN_AUTH_REALM", "override")
	t.Setenv("SDYN_AUTH_SCOPES", "openid,email")
	t.Setenv("SDYN_ADMIN_PUBLIC_URL", "https://admin.example.mn/")

	cfg, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.mn", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "override", cfg.Auth.Realm)
	assert.Equal(t, []string{"openid", "email"}, cfg.Auth.Scopes)
	assert.False(t, cfg.Auth.RefreshTokens)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, "redis:6379", cfg.Session.RedisAddr)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, "https://admin.example.mn", cfg.Admin.PublicURL)
	assert.Equal(t, "http://localhost:3000", cfg.Member.PublicURL)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad api url", func(c *Config) { c.API.BaseURL = "localhost" }, "api.base_url"},
		{"no realm", func(c *Config) { c.Auth.Realm = "" }, "auth.realm"},
		{"no client", func(c *Config) { c.Admin.ClientID = "" }, "client_id"},
		{"bad interval", func(c *Config) { c.Auth.RefreshInterval = 0 }, "refresh_interval"},
		{"bad store", func(c *Config) { c.Session.Store = "disk" }, "session.store"},
		{"bad csrf key", func(c *Config) { c.Session.CSRFKey = "abcd" }, "csrf_key"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateDefaultsPageSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSize = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.PageSize)
}

func TestCSRFKeyBytes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.CSRFKey = strings.Repeat("ab", 32)
	key, err := cfg.CSRFKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestAppValid(t *testing.T) {
	assert.True(t, AppMember.Valid())
	assert.True(t, AppAdmin.Valid())
	assert.False(t, App("all").Valid())
}
