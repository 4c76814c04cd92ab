package web

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
	"github.com/Wang-tianhao/vibrant-session-gate/internal/config"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiontoken"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSecret = []byte("super-secret-jwt-token-with-at-least-32-characters")

func mintAccess(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "user-123",
		"email":      "ada@example.com",
		"role":       "authenticated",
		"aud":        "authenticated",
		"session_id": "sess-1",
		"iat":        time.Now().Add(-time.Minute).Unix(),
		"exp":        exp.Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// provider is a fake hosted auth API that records the calls it receives
type provider struct {
	*http.ServeMux
	mu    sync.Mutex
	calls []string
}

func newProvider() *provider {
	return &provider{ServeMux: http.NewServeMux()}
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	call := r.Method + " " + r.URL.Path
	if grant := r.URL.Query().Get("grant_type"); grant != "" {
		call += "?grant_type=" + grant
	}
	p.calls = append(p.calls, call)
	p.mu.Unlock()
	p.ServeMux.ServeHTTP(w, r)
}

func (p *provider) called(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionJSON(access string) map[string]interface{} {
	return map[string]interface{}{
		"access_token":  access,
		"refresh_token": "refresh-next",
		"token_type":    "bearer",
		"expires_in":    3600,
		"user":          map[string]interface{}{"id": "user-123", "email": "ada@example.com"},
	}
}

type testApp struct {
	router   *gin.Engine
	provider *provider
	registry *prometheus.Registry
}

func newTestApp(t *testing.T, p *provider, mutate func(*config.Config)) *testApp {
	t.Helper()
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			URL:            srv.URL + "/auth/v1",
			AnonKey:        "anon-key",
			RequestTimeout: 2 * time.Second,
		},
		Site: config.SiteConfig{URL: "http://app.test"},
	}
	if mutate != nil {
		mutate(cfg)
	}

	refresher, err := authclient.New(cfg.Auth.URL, cfg.Auth.AnonKey)
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := sessiontoken.New(
		sessiontoken.WithHS256(testSecret),
		sessiontoken.WithRefresher(refresher),
		sessiontoken.WithCookieOptions(CookieOptions(cfg)),
	)
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	gate, err := sessiongate.NewConfig(
		sessiongate.WithVerifier(verifier),
		sessiongate.WithMatcher(GateMatcher()),
		sessiongate.WithMetrics(sessiongate.NewMetrics(reg, "")),
	)
	if err != nil {
		t.Fatal(err)
	}

	s, err := New(cfg, gate, WithGatherer(reg), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	router, err := s.Router()
	if err != nil {
		t.Fatal(err)
	}
	return &testApp{router: router, provider: p, registry: reg}
}

func (a *testApp) do(req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w.Result()
}

func get(path string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func postForm(path string, values url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func sessionCookies(access, refresh string) []*http.Cookie {
	var cookies []*http.Cookie
	if access != "" {
		cookies = append(cookies, &http.Cookie{Name: authclient.DefaultAccessCookie, Value: access})
	}
	if refresh != "" {
		cookies = append(cookies, &http.Cookie{Name: authclient.DefaultRefreshCookie, Value: refresh})
	}
	return cookies
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func flashOf(t *testing.T, resp *http.Response) Flash {
	t.Helper()
	c := cookieNamed(resp, flashCookie)
	if c == nil {
		t.Fatal("no flash cookie set")
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		t.Fatalf("flash cookie not base64: %v", err)
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("flash cookie not JSON: %v", err)
	}
	return f
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func assertRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func TestPublicPathsBypassGate(t *testing.T) {
	app := newTestApp(t, newProvider(), nil)

	resp := app.do(get("/healthz"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d", resp.StatusCode)
	}
	if resp.Header.Get(sessiongate.RequestIDHeader) != "" {
		t.Error("gate should not run on /healthz")
	}

	// Produce one gate decision, then scrape it
	app.do(get("/dashboard"))
	resp = app.do(get("/metrics"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(body(t, resp), "sessiongate_decisions_total") {
		t.Error("gate counters missing from /metrics")
	}

	resp = app.do(get("/static/app.css"))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/static/app.css status = %d", resp.StatusCode)
	}
}

func TestUnroutedPathsAreGated(t *testing.T) {
	access := mintAccess(t, time.Now().Add(time.Hour))
	app := newTestApp(t, newProvider(), nil)

	tests := []struct {
		name     string
		req      *http.Request
		location string
	}{
		{name: "anonymous protected path", req: get("/settings"), location: "/login"},
		{name: "anonymous nested path keeps query", req: get("/profile/edit?tab=2"), location: "/login?tab=2"},
		{name: "signed-in auth path", req: get("/auth/forgot", sessionCookies(access, "refresh-1")...), location: "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRedirect(t, app.do(tt.req), http.StatusTemporaryRedirect, tt.location)
		})
	}

	t.Run("admitted unrouted path is a 404", func(t *testing.T) {
		resp := app.do(get("/settings", sessionCookies(access, "refresh-1")...))
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
		if resp.Header.Get(sessiongate.RequestIDHeader) == "" {
			t.Error("gate did not run on the unrouted path")
		}
	})
}

func TestLoginPage(t *testing.T) {
	app := newTestApp(t, newProvider(), nil)

	resp := app.do(get("/login"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body(t, resp), "Welcome back") {
		t.Error("login form not rendered")
	}

	valid := sessionCookies(mintAccess(t, time.Now().Add(time.Hour)), "refresh-1")
	resp = app.do(get("/login", valid...))
	assertRedirect(t, resp, http.StatusTemporaryRedirect, "/dashboard")
}

func TestLogin(t *testing.T) {
	access := mintAccess(t, time.Now().Add(time.Hour))

	t.Run("success writes cookies and flashes", func(t *testing.T) {
		p := newProvider()
		p.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			var creds map[string]string
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds["email"] != "ada@example.com" || creds["password"] != "Secret1!" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "invalid_credentials", "msg": "Invalid login credentials"})
				return
			}
			writeJSON(w, http.StatusOK, sessionJSON(access))
		})
		app := newTestApp(t, p, nil)

		resp := app.do(postForm("/login", url.Values{"email": {" Ada@Example.com "}, "password": {"Secret1!"}}))
		assertRedirect(t, resp, http.StatusSeeOther, "/dashboard")

		if c := cookieNamed(resp, authclient.DefaultAccessCookie); c == nil || c.Value != access || !c.HttpOnly {
			t.Errorf("access cookie = %+v", c)
		}
		if c := cookieNamed(resp, authclient.DefaultRefreshCookie); c == nil || c.Value != "refresh-next" {
			t.Errorf("refresh cookie = %+v", c)
		}
		if f := flashOf(t, resp); f.Message != msgLoggedIn || f.Kind != "success" {
			t.Errorf("flash = %+v", f)
		}
		if p.called("POST /auth/v1/token?grant_type=password") != 1 {
			t.Errorf("password grant not called once: %v", p.calls)
		}
	})

	t.Run("validation errors never reach the provider", func(t *testing.T) {
		p := newProvider()
		app := newTestApp(t, p, nil)

		resp := app.do(postForm("/login", url.Values{"email": {"ada"}, "password": {"short"}}))
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		html := body(t, resp)
		for _, want := range []string{"Invalid email", "Min 6 characters", `value="ada"`} {
			if !strings.Contains(html, want) {
				t.Errorf("response missing %q", want)
			}
		}
		if len(p.calls) != 0 {
			t.Errorf("provider called: %v", p.calls)
		}
	})

	t.Run("provider rejection is shown on the form", func(t *testing.T) {
		p := newProvider()
		p.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "invalid_credentials", "msg": "Invalid login credentials"})
		})
		app := newTestApp(t, p, nil)

		resp := app.do(postForm("/login", url.Values{"email": {"ada@example.com"}, "password": {"Wrong1!x"}}))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(body(t, resp), "Invalid login credentials") {
			t.Error("provider message not rendered")
		}
		if cookieNamed(resp, authclient.DefaultAccessCookie) != nil {
			t.Error("no session cookie may be written on failure")
		}
	})

	t.Run("attempts are throttled per IP", func(t *testing.T) {
		p := newProvider()
		p.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "Invalid login credentials"})
		})
		app := newTestApp(t, p, func(cfg *config.Config) {
			cfg.RateLimit = config.RateLimitConfig{LoginPerMinute: 1, LoginBurst: 1}
		})

		form := url.Values{"email": {"ada@example.com"}, "password": {"Wrong1!x"}}
		if resp := app.do(postForm("/login", form)); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("first attempt status = %d", resp.StatusCode)
		}
		resp := app.do(postForm("/login", form))
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("second attempt status = %d", resp.StatusCode)
		}
		if p.called("POST /auth/v1/token?grant_type=password") != 1 {
			t.Error("throttled attempt reached the provider")
		}
	})
}

func TestRegister(t *testing.T) {
	form := url.Values{
		"first_name":       {"Ada"},
		"last_name":        {"Lovelace"},
		"email":            {"ada@example.com"},
		"password":         {"Secret1!"},
		"confirm_password": {"Secret1!"},
	}

	t.Run("email confirmation pending", func(t *testing.T) {
		p := newProvider()
		var got map[string]interface{}
		var redirectTo string
		p.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
			redirectTo = r.URL.Query().Get("redirect_to")
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": "user-123", "email": "ada@example.com"})
		})
		app := newTestApp(t, p, nil)

		resp := app.do(postForm("/register", form))
		assertRedirect(t, resp, http.StatusSeeOther, "/dashboard")
		if f := flashOf(t, resp); f.Message != msgConfirmEmail {
			t.Errorf("flash = %q", f.Message)
		}
		if cookieNamed(resp, authclient.DefaultAccessCookie) != nil {
			t.Error("no session cookie without a session")
		}
		if redirectTo != "http://app.test/login" {
			t.Errorf("redirect_to = %q", redirectTo)
		}
		data, _ := got["data"].(map[string]interface{})
		if data["full_name"] != "Ada Lovelace" {
			t.Errorf("metadata = %v", got["data"])
		}
	})

	t.Run("autoconfirm signs in", func(t *testing.T) {
		access := mintAccess(t, time.Now().Add(time.Hour))
		p := newProvider()
		p.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, sessionJSON(access))
		})
		app := newTestApp(t, p, nil)

		resp := app.do(postForm("/register", form))
		assertRedirect(t, resp, http.StatusSeeOther, "/dashboard")
		if f := flashOf(t, resp); f.Message != msgSignedUp {
			t.Errorf("flash = %q", f.Message)
		}
		if c := cookieNamed(resp, authclient.DefaultAccessCookie); c == nil || c.Value != access {
			t.Errorf("access cookie = %+v", c)
		}
	})

	t.Run("mismatched passwords", func(t *testing.T) {
		app := newTestApp(t, newProvider(), nil)
		bad := url.Values{}
		for k, v := range form {
			bad[k] = v
		}
		bad.Set("confirm_password", "Secret2!")

		resp := app.do(postForm("/register", bad))
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		html := body(t, resp)
		if !strings.Contains(html, "Passwords do not match") {
			t.Error("mismatch message missing")
		}
		if !strings.Contains(html, "Very strong password!!!") {
			t.Error("strength meter missing")
		}
	})
}

func TestOAuthStart(t *testing.T) {
	app := newTestApp(t, newProvider(), nil)

	resp := app.do(get("/auth/oauth/google"))
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	q := loc.Query()
	if !strings.HasSuffix(loc.Path, "/auth/v1/authorize") || q.Get("provider") != "google" {
		t.Errorf("authorize URL = %s", loc)
	}
	if q.Get("redirect_to") != "http://app.test/auth/callback" {
		t.Errorf("redirect_to = %q", q.Get("redirect_to"))
	}
	verifier := cookieNamed(resp, verifierCookie)
	if verifier == nil || verifier.Value == "" || !verifier.HttpOnly || verifier.Path != callbackPath {
		t.Errorf("verifier cookie = %+v", verifier)
	}

	resp = app.do(get("/auth/oauth/myspace"))
	assertRedirect(t, resp, http.StatusSeeOther, "/login")
	if f := flashOf(t, resp); f.Kind != "error" {
		t.Errorf("flash = %+v", f)
	}
}

func TestOAuthCallback(t *testing.T) {
	access := mintAccess(t, time.Now().Add(time.Hour))

	t.Run("exchanges the code", func(t *testing.T) {
		p := newProvider()
		var got map[string]string
		p.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			writeJSON(w, http.StatusOK, sessionJSON(access))
		})
		app := newTestApp(t, p, nil)

		resp := app.do(get("/auth/callback?code=auth-code", &http.Cookie{Name: verifierCookie, Value: "the-verifier"}))
		assertRedirect(t, resp, http.StatusSeeOther, "/dashboard")
		if got["auth_code"] != "auth-code" || got["code_verifier"] != "the-verifier" {
			t.Errorf("exchange body = %v", got)
		}
		if p.called("POST /auth/v1/token?grant_type=pkce") != 1 {
			t.Errorf("pkce grant not called: %v", p.calls)
		}
		if c := cookieNamed(resp, authclient.DefaultAccessCookie); c == nil || c.Value != access {
			t.Errorf("access cookie = %+v", c)
		}
		if c := cookieNamed(resp, verifierCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("verifier cookie must be deleted, got %+v", c)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		p := newProvider()
		app := newTestApp(t, p, nil)

		resp := app.do(get("/auth/callback"))
		assertRedirect(t, resp, http.StatusSeeOther, "/login")
		if f := flashOf(t, resp); f.Message != "Missing authorization code" {
			t.Errorf("flash = %+v", f)
		}
		if len(p.calls) != 0 {
			t.Errorf("provider called: %v", p.calls)
		}
	})

	t.Run("provider error in query", func(t *testing.T) {
		app := newTestApp(t, newProvider(), nil)
		resp := app.do(get("/auth/callback?error=access_denied&error_description=User+cancelled"))
		assertRedirect(t, resp, http.StatusSeeOther, "/login")
		if f := flashOf(t, resp); f.Message != "User cancelled" {
			t.Errorf("flash = %+v", f)
		}
	})
}

func TestDashboard(t *testing.T) {
	access := mintAccess(t, time.Now().Add(time.Hour))

	t.Run("anonymous is sent to login", func(t *testing.T) {
		app := newTestApp(t, newProvider(), nil)
		assertRedirect(t, app.do(get("/dashboard?tab=profile")), http.StatusTemporaryRedirect, "/login?tab=profile")
	})

	t.Run("renders the provider profile", func(t *testing.T) {
		p := newProvider()
		p.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+access {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "bad token"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":            "user-123",
				"email":         "ada@example.com",
				"app_metadata":  map[string]interface{}{"provider": "google"},
				"user_metadata": map[string]interface{}{"full_name": "Ada Lovelace"},
				"identities":    []map[string]string{{"id": "i1", "provider": "google"}, {"id": "i2", "provider": "email"}},
				"created_at":    "2024-01-02T03:04:05Z",
			})
		})
		app := newTestApp(t, p, nil)

		resp := app.do(get("/dashboard", sessionCookies(access, "refresh-1")...))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		html := body(t, resp)
		for _, want := range []string{"Ada Lovelace", "ada@example.com", "google, email", "2024-01-02 03:04:05 UTC", "Sign out"} {
			if !strings.Contains(html, want) {
				t.Errorf("dashboard missing %q", want)
			}
		}
	})

	t.Run("falls back to token identity", func(t *testing.T) {
		p := newProvider()
		p.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"msg": "down"})
		})
		app := newTestApp(t, p, nil)

		resp := app.do(get("/dashboard", sessionCookies(access, "refresh-1")...))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(body(t, resp), "ada@example.com") {
			t.Error("token email not shown")
		}
	})

	t.Run("expired token is refreshed by the gate", func(t *testing.T) {
		fresh := mintAccess(t, time.Now().Add(time.Hour))
		p := newProvider()
		p.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, sessionJSON(fresh))
		})
		p.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+fresh {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "stale token"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"id": "user-123", "email": "ada@example.com"})
		})
		app := newTestApp(t, p, nil)

		expired := mintAccess(t, time.Now().Add(-10*time.Minute))
		resp := app.do(get("/dashboard", sessionCookies(expired, "refresh-1")...))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if c := cookieNamed(resp, authclient.DefaultAccessCookie); c == nil || c.Value != fresh {
			t.Errorf("refreshed access cookie = %+v", c)
		}
		if n := p.called("POST /auth/v1/token?grant_type=refresh_token"); n != 1 {
			t.Errorf("refresh grant called %d times, want 1", n)
		}
		if p.called("GET /auth/v1/user") != 1 {
			t.Error("handler did not see the refreshed token")
		}
	})
}

func TestSignOut(t *testing.T) {
	access := mintAccess(t, time.Now().Add(time.Hour))
	p := newProvider()
	p.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	app := newTestApp(t, p, nil)

	resp := app.do(postForm("/signout", nil, sessionCookies(access, "refresh-1")...))
	assertRedirect(t, resp, http.StatusSeeOther, "/login")
	if p.called("POST /auth/v1/logout") != 1 {
		t.Errorf("provider logout not called: %v", p.calls)
	}
	for _, name := range []string{authclient.DefaultAccessCookie, authclient.DefaultRefreshCookie} {
		if c := cookieNamed(resp, name); c == nil || c.MaxAge >= 0 {
			t.Errorf("%s must be deleted, got %+v", name, c)
		}
	}
	if f := flashOf(t, resp); f.Message != msgSignedOut {
		t.Errorf("flash = %+v", f)
	}
}

func TestSessionEndpoint(t *testing.T) {
	access := mintAccess(t, time.Now().Add(time.Hour))
	p := newProvider()
	p.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "user-123", "email": "ada@example.com"})
	})
	app := newTestApp(t, p, nil)

	resp := app.do(get("/api/session", sessionCookies(access, "refresh-1")...))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view struct {
		State string           `json:"state"`
		User  *authclient.User `json:"user"`
	}
	if err := json.Unmarshal([]byte(body(t, resp)), &view); err != nil {
		t.Fatal(err)
	}
	if view.State != "authenticated" || view.User == nil || view.User.ID != "user-123" {
		t.Errorf("session view = %+v", view)
	}

	assertRedirect(t, app.do(get("/api/session")), http.StatusTemporaryRedirect, "/login")
}

func TestFlashShownOnce(t *testing.T) {
	app := newTestApp(t, newProvider(), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	setFlash(c, "success", msgSignedOut, false)
	flash := cookieNamed(w.Result(), flashCookie)

	resp := app.do(get("/login", flash))
	if !strings.Contains(body(t, resp), msgSignedOut) {
		t.Error("flash not rendered")
	}
	if c := cookieNamed(resp, flashCookie); c == nil || c.MaxAge >= 0 {
		t.Errorf("flash cookie must be expired after display, got %+v", c)
	}

	// A tampered cookie is ignored
	resp = app.do(get("/login", &http.Cookie{Name: flashCookie, Value: "%%%"}))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
