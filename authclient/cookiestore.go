package authclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessCookie  = "sb-access-token"
	DefaultRefreshCookie = "sb-refresh-token"
)

// CookieOptions controls the names and attributes of session cookies
type CookieOptions struct {
	AccessName  string
	RefreshName string
	Path        string
	Domain      string
	MaxAge      time.Duration
	Secure      bool
	SameSite    http.SameSite
}

// DefaultCookieOptions returns HttpOnly, Lax, path=/ cookies kept for a week
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		AccessName:  DefaultAccessCookie,
		RefreshName: DefaultRefreshCookie,
		Path:        "/",
		MaxAge:      7 * 24 * time.Hour,
		SameSite:    http.SameSiteLaxMode,
	}
}

func (o CookieOptions) withDefaults() CookieOptions {
	def := DefaultCookieOptions()
	if o.AccessName == "" {
		o.AccessName = def.AccessName
	}
	if o.RefreshName == "" {
		o.RefreshName = def.RefreshName
	}
	if o.Path == "" {
		o.Path = def.Path
	}
	if o.MaxAge == 0 {
		o.MaxAge = def.MaxAge
	}
	if o.SameSite == 0 {
		o.SameSite = def.SameSite
	}
	return o
}

// CookieStore reads a session from request cookies and records the
// Set-Cookie mutations needed to persist changes. It lives for one request.
type CookieStore struct {
	mu        sync.Mutex
	opts      CookieOptions
	access    string
	refresh   string
	mutations []*http.Cookie
}

// NewCookieStore creates a store over the cookies of an incoming request
func NewCookieStore(cookies []*http.Cookie, opts CookieOptions) *CookieStore {
	opts = opts.withDefaults()
	s := &CookieStore{opts: opts}
	for _, c := range cookies {
		switch c.Name {
		case opts.AccessName:
			s.access = c.Value
		case opts.RefreshName:
			s.refresh = c.Value
		}
	}
	return s
}

// Load rebuilds the session from cookie values. Expiry and user identity are
// read from the access token without verifying it; verification is the
// caller's concern.
func (s *CookieStore) Load(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.access == "" && s.refresh == "" {
		return nil, nil
	}
	session := &Session{
		AccessToken:  s.access,
		RefreshToken: s.refresh,
		TokenType:    "bearer",
	}
	if s.access == "" {
		// Refresh-only session: force a refresh on next use
		session.ExpiresAt = time.Unix(0, 0)
		return session, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.access, claims); err != nil {
		session.ExpiresAt = time.Unix(0, 0)
		return session, nil
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	if sub != "" {
		session.User = &User{ID: sub, Email: email}
		if role, ok := claims["role"].(string); ok {
			session.User.Role = role
		}
	}
	return session, nil
}

// Save records cookies for both tokens
func (s *CookieStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = session.AccessToken
	s.refresh = session.RefreshToken
	s.record(s.opts.AccessName, session.AccessToken, int(s.opts.MaxAge.Seconds()))
	s.record(s.opts.RefreshName, session.RefreshToken, int(s.opts.MaxAge.Seconds()))
	return nil
}

// Clear records deletion cookies for both tokens
func (s *CookieStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.record(s.opts.AccessName, "", -1)
	s.record(s.opts.RefreshName, "", -1)
	return nil
}

// Mutations returns the cookies to write to the response, one per name, last write wins
func (s *CookieStore) Mutations() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Cookie, len(s.mutations))
	copy(out, s.mutations)
	return out
}

// Options returns the effective cookie options
func (s *CookieStore) Options() CookieOptions {
	return s.opts
}

func (s *CookieStore) record(name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		MaxAge:   maxAge,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: s.opts.SameSite,
	}
	for i, existing := range s.mutations {
		if existing.Name == name {
			s.mutations[i] = cookie
			return
		}
	}
	s.mutations = append(s.mutations, cookie)
}
