// Package config loads the gateway configuration from the environment.
//
// A .env file in the working directory is loaded first when present, then
// every section is populated from environment variables. Call Validate before
// using the result.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

const devSessionSecret = "dev-session-secret-change-in-production"

// Config is the complete gateway configuration.
type Config struct {
	Service   ServiceConfig
	Logging   LoggingConfig
	Upstream  UpstreamConfig
	Session   SessionConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Frontend  FrontendConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig
	Shutdown  ShutdownConfig
}

type ServiceConfig struct {
	Name           string   `envconfig:"SERVICE_NAME" default:"session-gateway"`
	Version        string   `envconfig:"SERVICE_VERSION" default:"dev"`
	Env            string   `envconfig:"ENV" default:"development"`
	Port           string   `envconfig:"PORT" default:"3001"`
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type UpstreamConfig struct {
	BaseURL string        `envconfig:"UPSTREAM_API_URL"`
	Timeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
}

type SessionConfig struct {
	Secret     string        `envconfig:"SESSION_SECRET"`
	TTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"sid"`
	Store      string        `envconfig:"SESSION_STORE" default:"memory"`
	// CookieSecure is nil when unset so the environment can pick the default.
	CookieSecure   *bool  `envconfig:"COOKIE_SECURE"`
	// CookieSameSite is empty when unset: none over Secure cookies, lax otherwise.
	CookieSameSite string `envconfig:"COOKIE_SAME_SITE"`
	// SweepInterval is how often memory and postgres stores purge expired rows.
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB"`
	Prefix   string `envconfig:"REDIS_PREFIX" default:"session-gateway"`
}

type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL"`
}

type CORSConfig struct {
	AllowedOrigins        []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	AllowedOriginPatterns OriginPatterns `envconfig:"ALLOWED_ORIGIN_PATTERNS"`
}

// OriginPatterns is a whitespace-separated list of regular expressions.
// Commas are left alone so quantifiers like {1,8} survive.
type OriginPatterns []string

// Decode implements envconfig.Decoder.
func (p *OriginPatterns) Decode(value string) error {
	*p = strings.Fields(value)
	return nil
}

type FrontendConfig struct {
	URL               string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
	VerifySuccessPath string `envconfig:"VERIFY_SUCCESS_PATH" default:"/dashboard"`
	VerifyFailurePath string `envconfig:"VERIFY_FAILURE_PATH" default:"/login"`
}

type TracingConfig struct {
	Enabled    bool    `envconfig:"TRACING_ENABLED" default:"false"`
	Endpoint   string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	SampleRate float64 `envconfig:"TRACING_SAMPLE_RATE" default:"1.0"`
}

type ProfilingConfig struct {
	Enabled  bool   `envconfig:"PROFILING_ENABLED" default:"false"`
	Endpoint string `envconfig:"PYROSCOPE_SERVER_ADDRESS" default:"http://localhost:4040"`
}

type ShutdownConfig struct {
	Timeout             string `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	ReadinessDrainDelay string `envconfig:"READINESS_DRAIN_DELAY" default:"0s"`
}

// Load reads the configuration from the environment. Variables already set in
// the process environment take precedence over values from .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	sections := []any{
		&cfg.Service, &cfg.Logging, &cfg.Upstream, &cfg.Session, &cfg.Redis,
		&cfg.Database, &cfg.CORS, &cfg.Frontend, &cfg.Tracing, &cfg.Profiling,
		&cfg.Shutdown,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("process environment: %w", err)
		}
	}

	if cfg.Session.Secret == "" && !cfg.IsProduction() {
		cfg.Session.Secret = devSessionSecret
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Service.Env, "production")
}

// CookieSecure returns the Secure cookie attribute. Production defaults to true.
func (c *Config) CookieSecure() bool {
	if c.Session.CookieSecure != nil {
		return *c.Session.CookieSecure
	}
	return c.IsProduction()
}

// CookieSameSite maps COOKIE_SAME_SITE onto net/http's SameSite modes. When
// unset it is none for Secure cookies and lax otherwise, since browsers drop
// SameSite=None cookies without Secure.
func (c *Config) CookieSameSite() http.SameSite {
	switch strings.ToLower(c.Session.CookieSameSite) {
	case "":
		if c.CookieSecure() {
			return http.SameSiteNoneMode
		}
		return http.SameSiteLaxMode
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}

// GetShutdownTimeoutDuration returns the graceful shutdown budget.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return parseDurationOr(c.Shutdown.Timeout, 10*time.Second)
}

// GetReadinessDrainDelayDuration returns how long /ready reports 503 before
// the HTTP server starts shutting down.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return parseDurationOr(c.Shutdown.ReadinessDrainDelay, 0)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_API_URL is required"))
	} else if err := validateAbsoluteURL(c.Upstream.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("UPSTREAM_API_URL: %w", err))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required in production"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("SESSION_COOKIE_NAME is required"))
	}
	switch strings.ToLower(c.Session.CookieSameSite) {
	case "", "none", "lax", "strict":
	default:
		errs = append(errs, fmt.Errorf("COOKIE_SAME_SITE %q must be none, lax or strict", c.Session.CookieSameSite))
	}
	if c.CookieSameSite() == http.SameSiteNoneMode && !c.CookieSecure() {
		errs = append(errs, errors.New("COOKIE_SAME_SITE=none requires COOKIE_SECURE=true"))
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when SESSION_STORE=redis"))
		}
	case StorePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when SESSION_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE %q must be memory, redis or postgres", c.Session.Store))
	}

	for _, pattern := range c.CORS.AllowedOriginPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("ALLOWED_ORIGIN_PATTERNS %q: %w", pattern, err))
		}
	}

	if err := validateAbsoluteURL(c.Frontend.URL); err != nil {
		errs = append(errs, fmt.Errorf("FRONTEND_URL: %w", err))
	}
	for name, p := range map[string]string{
		"VERIFY_SUCCESS_PATH": c.Frontend.VerifySuccessPath,
		"VERIFY_FAILURE_PATH": c.Frontend.VerifyFailurePath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s must start with /", name))
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("TRACING_SAMPLE_RATE must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
