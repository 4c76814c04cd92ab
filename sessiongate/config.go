package sessiongate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ClaimsVerifier is the provider's claims-verification capability.
//
// VerifyClaims may refresh expired-but-refreshable tokens. Any cookies it wants
// written back to the client are returned as mutations, and must be returned
// even when err is non-nil (e.g. a failed refresh that clears the session).
// A nil *Claims with a nil error means the request carries no session.
type ClaimsVerifier interface {
	VerifyClaims(ctx context.Context, cookies []*http.Cookie) (*Claims, []*http.Cookie, error)
}

// VerifierFunc adapts a function to ClaimsVerifier
type VerifierFunc func(ctx context.Context, cookies []*http.Cookie) (*Claims, []*http.Cookie, error)

// VerifyClaims calls f
func (f VerifierFunc) VerifyClaims(ctx context.Context, cookies []*http.Cookie) (*Claims, []*http.Cookie, error) {
	return f(ctx, cookies)
}

// Config holds immutable configuration for the request gate
type Config struct {
	verifier       ClaimsVerifier
	authPrefixes   []string
	matcher        *Matcher
	protectedEntry string
	loginEntry     string
	redirectStatus int
	verifyTimeout  time.Duration
	logger         *slog.Logger
	metrics        *Metrics
}

// ConfigOption is a functional option for configuring the gate
type ConfigOption func(*Config) error

// NewConfig creates a new immutable configuration with the given options
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		authPrefixes:   append([]string(nil), DefaultAuthPrefixes...),
		matcher:        DefaultMatcher(),
		protectedEntry: "/dashboard",
		loginEntry:     "/login",
		redirectStatus: http.StatusTemporaryRedirect,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, NewGateError(ErrConfigError, fmt.Sprintf("configuration error: %v", err), err)
		}
	}

	if cfg.verifier == nil {
		return nil, NewGateError(ErrConfigError, "a claims verifier must be configured (use WithVerifier)", nil)
	}

	// The login entry must itself be an auth route, otherwise anonymous
	// users would be redirected to it forever.
	if ClassifyPath(cfg.loginEntry, cfg.authPrefixes) != RouteAuth {
		return nil, NewGateError(ErrConfigError,
			fmt.Sprintf("login entry %s is not covered by auth prefixes %v", cfg.loginEntry, cfg.authPrefixes), nil)
	}
	if ClassifyPath(cfg.protectedEntry, cfg.authPrefixes) != RouteProtected {
		return nil, NewGateError(ErrConfigError,
			fmt.Sprintf("protected entry %s must not be an auth route", cfg.protectedEntry), nil)
	}
	if !cfg.matcher.Matches(cfg.loginEntry) || !cfg.matcher.Matches(cfg.protectedEntry) {
		return nil, NewGateError(ErrConfigError, "entry points must not be excluded by the matcher", nil)
	}

	return cfg, nil
}

// WithVerifier sets the provider claims verifier
func WithVerifier(v ClaimsVerifier) ConfigOption {
	return func(c *Config) error {
		if v == nil {
			return fmt.Errorf("verifier cannot be nil")
		}
		c.verifier = v
		return nil
	}
}

// WithAuthPrefixes replaces the auth route prefixes
func WithAuthPrefixes(prefixes ...string) ConfigOption {
	return func(c *Config) error {
		if len(prefixes) == 0 {
			return fmt.Errorf("at least one auth prefix is required")
		}
		c.authPrefixes = c.authPrefixes[:0]
		for _, p := range prefixes {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("auth prefix %q must start with /", p)
			}
			c.authPrefixes = append(c.authPrefixes, p)
		}
		return nil
	}
}

// WithMatcher replaces the path exclusion matcher
func WithMatcher(m *Matcher) ConfigOption {
	return func(c *Config) error {
		if m == nil {
			return fmt.Errorf("matcher cannot be nil")
		}
		c.matcher = m
		return nil
	}
}

// WithProtectedEntry sets where authenticated users are sent from auth routes
func WithProtectedEntry(path string) ConfigOption {
	return func(c *Config) error {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("protected entry %q must be an absolute path", path)
		}
		c.protectedEntry = path
		return nil
	}
}

// WithLoginEntry sets where anonymous users are sent from protected routes
func WithLoginEntry(path string) ConfigOption {
	return func(c *Config) error {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("login entry %q must be an absolute path", path)
		}
		c.loginEntry = path
		return nil
	}
}

// WithRedirectStatus sets the status code used for redirects (default 307)
func WithRedirectStatus(status int) ConfigOption {
	return func(c *Config) error {
		switch status {
		case http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
			c.redirectStatus = status
			return nil
		}
		return fmt.Errorf("redirect status must be 302, 303 or 307, got %d", status)
	}
}

// WithVerifyTimeout bounds a single claims verification. Zero leaves timing to the provider.
func WithVerifyTimeout(d time.Duration) ConfigOption {
	return func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("verify timeout must be non-negative, got %v", d)
		}
		c.verifyTimeout = d
		return nil
	}
}

// WithLogger sets a structured logger for gate events
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics records gate outcomes into m
func WithMetrics(m *Metrics) ConfigOption {
	return func(c *Config) error {
		c.metrics = m
		return nil
	}
}

func (c *Config) AuthPrefixes() []string {
	return append([]string(nil), c.authPrefixes...)
}

func (c *Config) Matcher() *Matcher {
	return c.matcher
}

func (c *Config) ProtectedEntry() string {
	return c.protectedEntry
}

func (c *Config) LoginEntry() string {
	return c.loginEntry
}

func (c *Config) RedirectStatus() int {
	return c.redirectStatus
}

func (c *Config) Logger() *slog.Logger {
	return c.logger
}
