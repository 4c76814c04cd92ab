package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
	"github.com/Wang-tianhao/vibrant-session-gate/forms"
	"github.com/Wang-tianhao/vibrant-session-gate/mirror"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
)

const (
	verifierCookie = "sg-code-verifier"
	callbackPath   = "/auth/callback"

	msgLoggedIn      = "Logged in successfully"
	msgSignedUp      = "Signed up successfully"
	msgConfirmEmail  = "Account created. Please check your email to confirm, then log in."
	msgSignedOut     = "Signed out"
	msgTooManyLogins = "Too many sign-in attempts. Please wait a minute and try again."
)

// page is the data every template receives
type page struct {
	Title    string
	Flash    *Flash
	Error    string
	Values   map[string]string
	Fields   map[string]string
	Strength *forms.Strength
	Profile  *Profile
}

func (s *Server) render(c *gin.Context, status int, name string, p page) {
	if p.Flash == nil {
		p.Flash = popFlash(c, s.cfg.Cookie.Secure)
	}
	c.HTML(status, name, p)
}

func (s *Server) redirect(c *gin.Context, path string) {
	c.Redirect(http.StatusSeeOther, path)
}

func (s *Server) loginPage(c *gin.Context) {
	s.render(c, http.StatusOK, "login.html", page{Title: "Log in"})
}

func (s *Server) login(c *gin.Context) {
	var in forms.LoginInput
	_ = c.ShouldBind(&in)
	values := map[string]string{"email": in.Email}

	if !s.limiter.Allow(c.ClientIP()) {
		s.logger.Warn("sign-in throttled", "client_ip", c.ClientIP())
		s.render(c, http.StatusTooManyRequests, "login.html", page{Title: "Log in", Error: msgTooManyLogins, Values: values})
		return
	}

	if err := in.Validate(); err != nil {
		values["email"] = in.Email
		s.render(c, http.StatusUnprocessableEntity, "login.html", page{Title: "Log in", Values: values, Fields: forms.Fields(err)})
		return
	}

	client, store, err := s.authClient(c)
	if err != nil {
		s.fail(c, "login.html", "Log in", values, err)
		return
	}
	if _, err := client.SignInWithPassword(c.Request.Context(), in.Email, in.Password); err != nil {
		s.logger.Info("password sign-in failed", "error", err)
		s.fail(c, "login.html", "Log in", values, err)
		return
	}

	commit(c, store)
	setFlash(c, "success", msgLoggedIn, s.cfg.Cookie.Secure)
	s.redirect(c, s.gate.ProtectedEntry())
}

func (s *Server) registerPage(c *gin.Context) {
	strength := forms.PasswordStrength("")
	s.render(c, http.StatusOK, "register.html", page{Title: "Sign up", Strength: &strength})
}

func (s *Server) register(c *gin.Context) {
	var in forms.SignupInput
	_ = c.ShouldBind(&in)
	strength := forms.PasswordStrength(in.Password)

	if err := in.Validate(); err != nil {
		s.render(c, http.StatusUnprocessableEntity, "register.html", page{
			Title:    "Sign up",
			Values:   signupValues(in),
			Fields:   forms.Fields(err),
			Strength: &strength,
		})
		return
	}

	client, store, err := s.authClient(c)
	if err != nil {
		s.fail(c, "register.html", "Sign up", signupValues(in), err)
		return
	}
	result, err := client.SignUp(c.Request.Context(), authclient.SignUpParams{
		Email:      in.Email,
		Password:   in.Password,
		Data:       in.Metadata(),
		RedirectTo: s.cfg.Site.RedirectURL(s.gate.LoginEntry()),
	})
	if err != nil {
		s.logger.Info("sign-up failed", "error", err)
		s.fail(c, "register.html", "Sign up", signupValues(in), err)
		return
	}

	commit(c, store)
	if result.Session != nil {
		setFlash(c, "success", msgSignedUp, s.cfg.Cookie.Secure)
	} else {
		setFlash(c, "success", msgConfirmEmail, s.cfg.Cookie.Secure)
	}
	s.redirect(c, s.gate.ProtectedEntry())
}

func signupValues(in forms.SignupInput) map[string]string {
	return map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
	}
}

// fail re-renders a form with the provider's user-facing message
func (s *Server) fail(c *gin.Context, name, title string, values map[string]string, err error) {
	status := http.StatusBadGateway
	var apiErr *authclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		status = http.StatusUnauthorized
	}
	p := page{Title: title, Error: authclient.UserMessage(err), Values: values}
	if name == "register.html" {
		strength := forms.PasswordStrength("")
		p.Strength = &strength
	}
	s.render(c, status, name, p)
}

func (s *Server) oauthStart(c *gin.Context) {
	provider := c.Param("provider")
	if !s.providers[provider] {
		setFlash(c, "error", "Unsupported sign-in provider", s.cfg.Cookie.Secure)
		s.redirect(c, s.gate.LoginEntry())
		return
	}

	client, _, err := s.authClient(c)
	if err == nil {
		var start *authclient.OAuthStart
		start, err = client.SignInWithOAuth(c.Request.Context(), provider, s.cfg.Site.RedirectURL(callbackPath))
		if err == nil {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     verifierCookie,
				Value:    start.CodeVerifier,
				Path:     callbackPath,
				MaxAge:   int((10 * time.Minute).Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.Cookie.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			c.Redirect(http.StatusFound, start.URL)
			return
		}
	}

	s.logger.Warn("oauth start failed", "provider", provider, "error", err)
	setFlash(c, "error", authclient.UserMessage(err), s.cfg.Cookie.Secure)
	s.redirect(c, s.gate.LoginEntry())
}

func (s *Server) oauthCallback(c *gin.Context) {
	// The verifier is single use whatever the outcome
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     verifierCookie,
		Path:     callbackPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if desc := c.Query("error_description"); desc != "" {
		setFlash(c, "error", desc, s.cfg.Cookie.Secure)
		s.redirect(c, s.gate.LoginEntry())
		return
	}

	verifier, _ := c.Cookie(verifierCookie)
	client, store, err := s.authClient(c)
	if err == nil {
		_, err = client.ExchangeCodeForSession(c.Request.Context(), c.Query("code"), verifier)
	}
	if err != nil {
		s.logger.Warn("oauth callback failed", "error", err)
		setFlash(c, "error", authclient.UserMessage(err), s.cfg.Cookie.Secure)
		s.redirect(c, s.gate.LoginEntry())
		return
	}

	commit(c, store)
	setFlash(c, "success", msgLoggedIn, s.cfg.Cookie.Secure)
	s.redirect(c, s.gate.ProtectedEntry())
}

func (s *Server) dashboard(c *gin.Context) {
	claims := sessiongate.MustGetClaims(c.Request.Context())

	user := &authclient.User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}
	client, store, err := s.authClient(c)
	if err == nil {
		var fetched *authclient.User
		fetched, err = client.GetUser(c.Request.Context())
		commit(c, store)
		if err == nil && fetched != nil {
			user = fetched
		}
	}
	if err != nil {
		s.logger.Warn("user fetch failed, showing token identity", "user_id", claims.Subject, "error", err)
	}

	profile := newProfile(user)
	s.render(c, http.StatusOK, "dashboard.html", page{Title: "Dashboard", Profile: &profile})
}

func (s *Server) signOut(c *gin.Context) {
	client, store, err := s.authClient(c)
	if err == nil {
		if err := client.SignOut(c.Request.Context()); err != nil {
			s.logger.Warn("provider sign-out failed", "error", err)
		}
		commit(c, store)
	}
	setFlash(c, "success", msgSignedOut, s.cfg.Cookie.Secure)
	s.redirect(c, s.gate.LoginEntry())
}

// sessionView is the JSON snapshot a browser mirror bootstraps from
type sessionView struct {
	State string           `json:"state"`
	User  *authclient.User `json:"user"`
}

func (s *Server) session(c *gin.Context) {
	client, store, err := s.authClient(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "auth client unavailable"})
		return
	}

	m := mirror.New(client, mirror.WithLogger(s.logger))
	if err := m.Mount(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer m.Unmount()

	ctx := c.Request.Context()
	if timeout := s.cfg.Auth.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-m.Ready():
	case <-ctx.Done():
	}

	commit(c, store)
	snap := m.Snapshot()
	user, _ := snap.Principal()
	c.JSON(http.StatusOK, sessionView{State: snap.State().String(), User: user})
}
