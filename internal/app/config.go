package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the gateway.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"0"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// Upstream API endpoints. Verify/refresh/login/create-user default to
	// well-known paths under the base URL when left empty.
	BackendBaseURL       string `envconfig:"BACKEND_BASE_URL" required:"true"`
	BackendVerifyURL     string `envconfig:"BACKEND_VERIFY_URL"`
	BackendRefreshURL    string `envconfig:"BACKEND_REFRESH_URL"`
	BackendLoginURL      string `envconfig:"BACKEND_LOGIN_URL"`
	BackendCreateUserURL string `envconfig:"BACKEND_CREATE_USER_URL"`

	// SuperAdminEmails is authoritative: members receive the wildcard
	// privilege set. PublicSuperAdminEmails only feeds UI affordances and is
	// reported by /debug/env; it never influences authorization decisions.
	SuperAdminEmails       []string `envconfig:"SUPER_ADMIN_EMAILS"`
	PublicSuperAdminEmails []string `envconfig:"PUBLIC_SUPER_ADMIN_EMAILS"`

	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	PrivilegeCacheTTL time.Duration `envconfig:"PRIVILEGE_CACHE_TTL" default:"60s"`

	AuditPGDSN string `envconfig:"AUDIT_PG_DSN"`

	ProxyMaxAttempts     int           `envconfig:"PROXY_MAX_ATTEMPTS" default:"8"`
	ProxyInitialInterval time.Duration `envconfig:"PROXY_INITIAL_INTERVAL" default:"2s"`
	ProxyMaxInterval     time.Duration `envconfig:"PROXY_MAX_INTERVAL" default:"32s"`
	ProxyMaxElapsed      time.Duration `envconfig:"PROXY_MAX_ELAPSED" default:"1h"`

	// PermissiveFallback re-enables the legacy fail-open behavior (unknown
	// module grants access, empty menu set shows everything). Development
	// only; startup refuses it in production.
	PermissiveFallback bool `envconfig:"AUTHZ_PERMISSIVE_FALLBACK"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.BackendBaseURL = strings.TrimRight(cfg.BackendBaseURL, "/")
	if cfg.BackendBaseURL == "" {
		return nil, errors.New("backend base URL must be provided")
	}
	if cfg.IsProduction() && cfg.PermissiveFallback {
		return nil, errors.New("permissive authorization fallback is not allowed in production")
	}
	if cfg.ProxyMaxAttempts < 1 {
		return nil, errors.New("proxy max attempts must be at least 1")
	}
	return &cfg, nil
}

// IsProduction returns true when the gateway runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.IsProduction()
}
