package sessiontoken

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

// Refresher exchanges a refresh token for a new session.
// *authclient.Client satisfies it.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*authclient.Session, error)
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func(ctx context.Context, refreshToken string) (*authclient.Session, error)

// RefreshSession calls f
func (f RefresherFunc) RefreshSession(ctx context.Context, refreshToken string) (*authclient.Session, error) {
	return f(ctx, refreshToken)
}

// algorithmValidator holds signing key and method for a specific algorithm
type algorithmValidator struct {
	signingKey    interface{}       // []byte for HS256, *rsa.PublicKey for RS256
	signingMethod jwt.SigningMethod // jwt.SigningMethodHS256 or jwt.SigningMethodRS256
}

// Config holds immutable configuration for session token verification
type Config struct {
	validators      map[string]algorithmValidator // "HS256" -> validator, "RS256" -> validator
	clockSkewLeeway time.Duration
	issuer          string
	audience        string
	requiredClaims  []string
	cookies         authclient.CookieOptions
	refresher       Refresher
	logger          *slog.Logger
	now             func() time.Time
}

// ConfigOption is a functional option for configuring the verifier
type ConfigOption func(*Config) error

// NewConfig creates a new immutable configuration with the given options
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{
		validators:      make(map[string]algorithmValidator),
		clockSkewLeeway: 60 * time.Second,
		cookies:         authclient.DefaultCookieOptions(),
		now:             time.Now,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, NewTokenError(ErrConfigError, fmt.Sprintf("configuration error: %v", err), err)
		}
	}

	if len(cfg.validators) == 0 {
		return nil, NewTokenError(ErrConfigError, "at least one algorithm must be configured (use WithHS256 or WithRS256)", nil)
	}

	for alg, validator := range cfg.validators {
		if validator.signingKey == nil {
			return nil, NewTokenError(ErrConfigError, fmt.Sprintf("signing key for %s cannot be nil", alg), nil)
		}
		if validator.signingMethod == nil {
			return nil, NewTokenError(ErrConfigError, fmt.Sprintf("signing method for %s cannot be nil", alg), nil)
		}
	}

	return cfg, nil
}

// WithHS256 configures HMAC-SHA256 verification with the project's JWT secret
func WithHS256(secret []byte) ConfigOption {
	return func(c *Config) error {
		if len(secret) < 32 {
			return fmt.Errorf("HS256 secret must be at least 32 bytes (256 bits), got %d bytes", len(secret))
		}
		c.validators["HS256"] = algorithmValidator{
			signingKey:    secret,
			signingMethod: jwt.SigningMethodHS256,
		}
		return nil
	}
}

// WithRS256 configures RSA-SHA256 verification with the given public key
func WithRS256(publicKey *rsa.PublicKey) ConfigOption {
	return func(c *Config) error {
		if publicKey == nil {
			return fmt.Errorf("RS256 public key cannot be nil")
		}
		c.validators["RS256"] = algorithmValidator{
			signingKey:    publicKey,
			signingMethod: jwt.SigningMethodRS256,
		}
		return nil
	}
}

// WithClockSkew sets the clock skew tolerance for exp/nbf/iat validation
func WithClockSkew(skew time.Duration) ConfigOption {
	return func(c *Config) error {
		if skew < 0 {
			return fmt.Errorf("clock skew must be non-negative, got %v", skew)
		}
		c.clockSkewLeeway = skew
		return nil
	}
}

// WithIssuer requires the iss claim to equal issuer
func WithIssuer(issuer string) ConfigOption {
	return func(c *Config) error {
		c.issuer = issuer
		return nil
	}
}

// WithAudience requires the aud claim to contain audience
func WithAudience(audience string) ConfigOption {
	return func(c *Config) error {
		c.audience = audience
		return nil
	}
}

// WithRequiredClaims specifies claim names that must be present in the token
func WithRequiredClaims(claims ...string) ConfigOption {
	return func(c *Config) error {
		c.requiredClaims = append(c.requiredClaims, claims...)
		return nil
	}
}

// WithCookieOptions sets the session cookie names and attributes
func WithCookieOptions(opts authclient.CookieOptions) ConfigOption {
	return func(c *Config) error {
		c.cookies = opts
		return nil
	}
}

// WithRefresher enables refreshing expired access tokens
func WithRefresher(r Refresher) ConfigOption {
	return func(c *Config) error {
		if r == nil {
			return fmt.Errorf("refresher cannot be nil")
		}
		c.refresher = r
		return nil
	}
}

// WithLogger sets a structured logger for refresh activity
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// withClock overrides the verification clock
func withClock(now func() time.Time) ConfigOption {
	return func(c *Config) error {
		c.now = now
		return nil
	}
}

// AvailableAlgorithms returns a sorted list of configured algorithm names
func (c *Config) AvailableAlgorithms() []string {
	algs := make([]string, 0, len(c.validators))
	for alg := range c.validators {
		algs = append(algs, alg)
	}
	sort.Strings(algs)
	return algs
}

func (c *Config) getValidator(alg string) (algorithmValidator, bool) {
	validator, exists := c.validators[alg]
	return validator, exists
}

func (c *Config) ClockSkewLeeway() time.Duration {
	return c.clockSkewLeeway
}

func (c *Config) RequiredClaims() []string {
	return append([]string(nil), c.requiredClaims...)
}

func (c *Config) CookieOptions() authclient.CookieOptions {
	return c.cookies
}

func (c *Config) Logger() *slog.Logger {
	return c.logger
}
