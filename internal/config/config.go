package config

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Site          SiteConfig
	Cookie        CookieConfig
	Gate          GateConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds the hosted auth provider settings
type AuthConfig struct {
	URL              string // GoTrue base URL, e.g. https://ref.supabase.co/auth/v1
	AnonKey          string
	JWTSecret        string // HS256 project secret
	JWTPublicKeyFile string // RS256 public key (PEM), optional
	Issuer           string
	Audience         string
	RequestTimeout   time.Duration
}

// SiteConfig holds the public origin used for OAuth and email redirects
type SiteConfig struct {
	URL string
}

// CookieConfig holds session cookie attributes
type CookieConfig struct {
	Secure bool
	Domain string
}

// GateConfig holds request gate settings
type GateConfig struct {
	PolicyFile     string
	Policy         *Policy // loaded from PolicyFile, nil when unset
	VerifyTimeout  time.Duration
	RedirectStatus int
}

// RateLimitConfig holds sign-in throttling settings
type RateLimitConfig struct {
	LoginPerMinute int // 0 disables throttling
	LoginBurst     int
}

// ObservabilityConfig holds logging and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading .env and environment variables
func New(ctx context.Context) (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Addr:            getEnv("SESSIONGATE_ADDR", ":3000"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			URL:              strings.TrimRight(getEnv("AUTH_URL", ""), "/"),
			AnonKey:          getEnv("AUTH_ANON_KEY", ""),
			JWTSecret:        getEnv("AUTH_JWT_SECRET", ""),
			JWTPublicKeyFile: getEnv("AUTH_JWT_PUBLIC_KEY_FILE", ""),
			Issuer:           getEnv("AUTH_JWT_ISSUER", ""),
			Audience:         getEnv("AUTH_JWT_AUDIENCE", ""),
			RequestTimeout:   getEnvAsDuration("AUTH_REQUEST_TIMEOUT", 10*time.Second),
		},
		Site: SiteConfig{
			URL: strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
		},
		Cookie: CookieConfig{
			Secure: getEnvAsBool("COOKIE_SECURE", false),
			Domain: getEnv("COOKIE_DOMAIN", ""),
		},
		Gate: GateConfig{
			PolicyFile:     getEnv("GATE_POLICY_FILE", ""),
			VerifyTimeout:  getEnvAsDuration("GATE_VERIFY_TIMEOUT", 5*time.Second),
			RedirectStatus: getEnvAsInt("GATE_REDIRECT_STATUS", http.StatusSeeOther),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getEnvAsInt("LOGIN_RATE_PER_MIN", 10),
			LoginBurst:     getEnvAsInt("LOGIN_RATE_BURST", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Gate.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.Gate.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("gate policy: %w", err)
		}
		cfg.Gate.Policy = policy
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Auth.URL == "" {
		return fmt.Errorf("AUTH_URL is required")
	}
	if u, err := url.Parse(c.Auth.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AUTH_URL must be an absolute URL, got %q", c.Auth.URL)
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWTPublicKeyFile == "" {
		return fmt.Errorf("AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY_FILE is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes")
	}

	if u, err := url.Parse(c.Site.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SITE_URL must be an absolute URL, got %q", c.Site.URL)
	}

	if c.IsProduction() && !c.Cookie.Secure {
		return fmt.Errorf("COOKIE_SECURE must be enabled in production")
	}

	switch c.Gate.RedirectStatus {
	case 0, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
	default:
		return fmt.Errorf("GATE_REDIRECT_STATUS must be 302, 303 or 307, got %d", c.Gate.RedirectStatus)
	}

	if c.RateLimit.LoginPerMinute < 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MIN must be non-negative")
	}
	if c.RateLimit.LoginPerMinute > 0 && c.RateLimit.LoginBurst < 1 {
		return fmt.Errorf("LOGIN_RATE_BURST must be at least 1")
	}

	if _, err := ParseLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Observability.LogFormat)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// RedirectURL joins path onto the public site origin
func (c *SiteConfig) RedirectURL(path string) string {
	return c.URL + "/" + strings.TrimLeft(path, "/")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
