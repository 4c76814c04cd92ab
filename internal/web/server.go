// Package web serves the sign-in, registration and dashboard pages behind the
// session gate.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
	"github.com/Wang-tianhao/vibrant-session-gate/internal/config"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// PublicPaths are served without consulting the gate
var PublicPaths = []string{"/healthz", "/metrics"}

// GateMatcher extends the default exclusions with PublicPaths
func GateMatcher() *sessiongate.Matcher {
	def := sessiongate.DefaultMatcher()
	return sessiongate.NewMatcher(append(def.Prefixes(), PublicPaths...), def.Extensions())
}

// Server holds the dependencies shared by every handler
type Server struct {
	cfg        *config.Config
	gate       *sessiongate.Config
	cookies    authclient.CookieOptions
	httpClient *http.Client
	limiter    *ipLimiter
	gatherer   prometheus.Gatherer
	providers  map[string]bool
	logger     *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the structured logger for handlers and per-request auth clients
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client used to reach the auth provider
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithGatherer exposes g on /metrics. Without it /metrics is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithOAuthProviders replaces the allowed OAuth providers (default: google)
func WithOAuthProviders(providers ...string) Option {
	return func(s *Server) {
		s.providers = make(map[string]bool, len(providers))
		for _, p := range providers {
			s.providers[p] = true
		}
	}
}

// New creates a Server. gate decides which requests reach the handlers.
func New(cfg *config.Config, gate *sessiongate.Config, opts ...Option) (*Server, error) {
	if cfg == nil || gate == nil {
		return nil, fmt.Errorf("web: config and gate are required")
	}
	s := &Server{
		cfg:        cfg,
		gate:       gate,
		cookies:    CookieOptions(cfg),
		httpClient: &http.Client{Timeout: cfg.Auth.RequestTimeout},
		limiter:    newIPLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		providers:  map[string]bool{"google": true},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CookieOptions derives session cookie attributes from cfg
func CookieOptions(cfg *config.Config) authclient.CookieOptions {
	opts := authclient.DefaultCookieOptions()
	opts.Secure = cfg.Cookie.Secure
	opts.Domain = cfg.Cookie.Domain
	return opts
}

// Router builds the gin engine with the gate installed in front of every page
func (s *Server) Router() (*gin.Engine, error) {
	tmpl, err := template.New("pages").Option("missingkey=zero").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", s.health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	r.StaticFS("/static", http.FS(static))

	// Every route below, and every unrouted path, passes through the gate
	r.Use(sessiongate.Gate(s.gate))
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, s.gate.ProtectedEntry())
	})
	r.GET("/login", s.loginPage)
	r.POST("/login", s.login)
	r.GET("/register", s.registerPage)
	r.POST("/register", s.register)
	r.GET("/auth/oauth/:provider", s.oauthStart)
	r.GET("/auth/callback", s.oauthCallback)
	r.GET("/dashboard", s.dashboard)
	r.POST("/signout", s.signOut)
	r.GET("/api/session", s.session)

	return r, nil
}

// accessLog logs one line per request in the gate's field vocabulary
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestID, _ := sessiongate.GetRequestID(c.Request.Context())
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authClient returns a provider client whose session lives in this request's cookies
func (s *Server) authClient(c *gin.Context) (*authclient.Client, *authclient.CookieStore, error) {
	store := authclient.NewCookieStore(c.Request.Cookies(), s.cookies)
	client, err := authclient.New(s.cfg.Auth.URL, s.cfg.Auth.AnonKey,
		authclient.WithStore(store),
		authclient.WithHTTPClient(s.httpClient),
		authclient.WithLogger(s.logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, store, nil
}

// commit writes the store's cookie mutations to the response
func commit(c *gin.Context, store *authclient.CookieStore) {
	for _, cookie := range store.Mutations() {
		http.SetCookie(c.Writer, cookie)
	}
}
