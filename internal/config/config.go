package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App selects which front-end a server instance renders.
type App string

const (
	AppMember App = "member"
	AppAdmin  App = "admin"
)

func (a App) Valid() bool {
	return a == AppMember || a == AppAdmin
}

// AppConfig is the per-application HTTP and identity-provider client setup.
type AppConfig struct {
	// ListenAddr is the address on which the application will listen.
	ListenAddr string `env:"LISTEN_ADDR" yaml:"listen_addr"`

	// PublicURL is the externally visible base URL, used to build OIDC
	// redirect URIs.
	PublicURL string `env:"PUBLIC_URL" yaml:"public_url"`

	// ClientID is the OIDC client registered for this application.
	ClientID string `env:"CLIENT_ID" yaml:"client_id"`

	// ClientSecret is only set for confidential clients.
	ClientSecret string `env:"CLIENT_SECRET" yaml:"client_secret"`
}

// APIConfig points at the REST backend.
type APIConfig struct {
	BaseURL string        `env:"BASE_URL" yaml:"base_url"`
	Timeout time.Duration `env:"TIMEOUT" yaml:"timeout"`
}

// AuthConfig is the identity provider configuration.
type AuthConfig struct {
	// URL is the identity provider base URL, e.g. https://auth.example.mn.
	URL string `env:"URL" yaml:"url"`

	// Realm is the Keycloak realm name.
	Realm string `env:"REALM" yaml:"realm"`

	Scopes []string `env:"SCOPES" envSeparator:"," yaml:"scopes"`

	// RefreshTokens enables refresh-token rotation. When disabled an expired
	// access token ends the session and the user logs in again.
	RefreshTokens bool `env:"REFRESH_TOKENS" yaml:"refresh_tokens"`

	// RefreshInterval is how often the background refresher runs.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" yaml:"refresh_interval"`

	// MinValidity is the remaining lifetime below which a token is refreshed.
	MinValidity time.Duration `env:"MIN_VALIDITY" yaml:"min_validity"`

	// DiscoveryAttempts bounds the startup wait for the provider.
	DiscoveryAttempts int `env:"DISCOVERY_ATTEMPTS" yaml:"discovery_attempts"`
}

// IssuerURL is the realm issuer, the base of every OIDC endpoint.
func (a AuthConfig) IssuerURL() string {
	return strings.TrimSuffix(a.URL, "/") + "/realms/" + url.PathEscape(a.Realm)
}

// SessionConfig configures the server-side session store.
type SessionConfig struct {
	// Store is "memory" or "redis".
	Store      string        `env:"STORE" yaml:"store"`
	TTL        time.Duration `env:"TTL" yaml:"ttl"`
	Capacity   int           `env:"CAPACITY" yaml:"capacity"`
	CookieName string        `env:"COOKIE_NAME" yaml:"cookie_name"`

	// CookieSecure marks cookies Secure. Turn off only for plain-HTTP development.
	CookieSecure bool `env:"COOKIE_SECURE" yaml:"cookie_secure"`

	// CSRFKey is a hex-encoded 32-byte key. Empty generates one per process.
	CSRFKey string `env:"CSRF_KEY" yaml:"csrf_key"`

	RedisAddr     string `env:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPassword string `env:"REDIS_PASSWORD" yaml:"redis_password"`
	RedisDB       int    `env:"REDIS_DB" yaml:"redis_db"`
}

// LogConfig is the logger configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LEVEL" yaml:"level"`

	// Format is "json" or "console".
	Format string `env:"FORMAT" yaml:"format"`
}

// MetricsConfig is the configuration for the metrics listener.
type MetricsConfig struct {
	// ListenAddr is empty to disable the listener.
	ListenAddr string `env:"LISTEN_ADDR" yaml:"listen_addr"`
}

// Config is the configuration for both portals.
type Config struct {
	Member  AppConfig     `envPrefix:"MEMBER_" yaml:"member"`
	Admin   AppConfig     `envPrefix:"ADMIN_" yaml:"admin"`
	API     APIConfig     `envPrefix:"API_" yaml:"api"`
	Auth    AuthConfig    `envPrefix:"AUTH_" yaml:"auth"`
	Session SessionConfig `envPrefix:"SESSION_" yaml:"session"`
	Log     LogConfig     `envPrefix:"LOG_" yaml:"log"`
	Metrics MetricsConfig `envPrefix:"METRICS_" yaml:"metrics"`

	// PageSize is the number of table rows per page.
	PageSize int `env:"PAGE_SIZE" yaml:"page_size"`
}

// For returns the per-application section.
func (c *Config) For(app App) AppConfig {
	if app == AppAdmin {
		return c.Admin
	}
	return c.Member
}

// DefaultConfig returns the default Config.
func DefaultConfig() *Config {
	return &Config{
		Member: AppConfig{
			ListenAddr: ":3000",
			PublicURL:  "http://localhost:3000",
			ClientID:   "sdyn-web",
		},
		Admin: AppConfig{
			ListenAddr: ":3001",
			PublicURL:  "http://localhost:3001",
			ClientID:   "sdyn-admin",
		},
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			URL:               "https://auth.e-sdy.mn",
			Realm:             "sdyn",
			Scopes:            []string{"openid", "profile", "email"},
			RefreshTokens:     true,
			RefreshInterval:   30 * time.Second,
			MinValidity:       60 * time.Second,
			DiscoveryAttempts: 8,
		},
		Session: SessionConfig{
			Store:        "memory",
			TTL:          12 * time.Hour,
			Capacity:     10000,
			CookieName:   "sdyn_session",
			CookieSecure: true,
			RedisAddr:    "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			ListenAddr: "localhost:9090",
		},
		PageSize: 10,
	}
}

// parseFile parses the given file as a configuration file.
// The file must be in YAML format.
func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close() // nolint: errcheck
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// parseEnv overrides cfg with SDYN_* environment variables. A .env file in
// the working directory is loaded first; existing variables win.
func parseEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix: "SDYN_",
	}); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}
	return nil
}

// Parse builds the configuration from defaults, the optional YAML file at
// path and the environment, in that order, then validates it.
func Parse(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and normalizes URLs.
func (c *Config) Validate() error {
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	c.Auth.URL = strings.TrimSuffix(c.Auth.URL, "/")
	c.Member.PublicURL = strings.TrimSuffix(c.Member.PublicURL, "/")
	c.Admin.PublicURL = strings.TrimSuffix(c.Admin.PublicURL, "/")

	for name, raw := range map[string]string{
		"api.base_url":      c.API.BaseURL,
		"auth.url":          c.Auth.URL,
		"member.public_url": c.Member.PublicURL,
		"admin.public_url":  c.Admin.PublicURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid url %q", name, raw)
		}
	}

	if c.Auth.Realm == "" {
		return fmt.Errorf("auth.realm is required")
	}
	if c.Member.ClientID == "" || c.Admin.ClientID == "" {
		return fmt.Errorf("member.client_id and admin.client_id are required")
	}
	if c.Auth.RefreshInterval <= 0 {
		return fmt.Errorf("auth.refresh_interval must be positive")
	}
	if c.Auth.MinValidity < 0 {
		return fmt.Errorf("auth.min_validity must not be negative")
	}

	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.store: unknown store %q", c.Session.Store)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Session.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}

	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	return nil
}

// CSRFKeyBytes decodes the configured CSRF key.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.Session.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("session.csrf_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session.csrf_key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}
