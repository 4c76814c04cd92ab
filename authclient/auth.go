package authclient

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// SignInWithPassword exchanges credentials for a session, persists it and emits SIGNED_IN
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/token",
		url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := parseResponse(resp, &tr); err != nil {
		return nil, err
	}
	session := tr.session(c.now())
	if session == nil {
		return nil, fmt.Errorf("provider returned no session")
	}
	return session, c.establish(ctx, EventSignedIn, session)
}

// SignUp registers a user. The result carries a session only when the
// provider does not require email confirmation.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*SignUpResult, error) {
	var query url.Values
	if params.RedirectTo != "" {
		query = url.Values{"redirect_to": {params.RedirectTo}}
	}
	body := map[string]interface{}{
		"email":    params.Email,
		"password": params.Password,
	}
	if len(params.Data) > 0 {
		body["data"] = params.Data
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/signup", query, body, "")
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := parseResponse(resp, &raw); err != nil {
		return nil, err
	}

	// With confirmations enabled the body is the bare user; otherwise a session
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}
	if session := tr.session(c.now()); session != nil {
		if err := c.establish(ctx, EventSignedIn, session); err != nil {
			return nil, err
		}
		return &SignUpResult{User: session.User, Session: session}, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode signup user: %w", err)
	}
	return &SignUpResult{User: &user}, nil
}

// SignInWithOAuth prepares a PKCE authorization request for provider.
// No network call is made; the caller redirects the browser to the returned URL
// and keeps CodeVerifier for ExchangeCodeForSession.
func (c *Client) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (*OAuthStart, error) {
	if provider == "" {
		return nil, fmt.Errorf("oauth provider is required")
	}
	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	query := url.Values{
		"provider":              {provider},
		"code_challenge":        {codeChallenge(verifier)},
		"code_challenge_method": {"s256"},
	}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	return &OAuthStart{
		URL:          c.baseURL + "/authorize?" + query.Encode(),
		CodeVerifier: verifier,
	}, nil
}

// ExchangeCodeForSession completes a PKCE sign-in started by SignInWithOAuth
func (c *Client) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*Session, error) {
	if code == "" || verifier == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "Missing authorization code"}
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/token",
		url.Values{"grant_type": {"pkce"}},
		map[string]string{"auth_code": code, "code_verifier": verifier}, "")
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := parseResponse(resp, &tr); err != nil {
		return nil, err
	}
	session := tr.session(c.now())
	if session == nil {
		return nil, fmt.Errorf("provider returned no session")
	}
	return session, c.establish(ctx, EventSignedIn, session)
}

// RefreshSession trades a refresh token for a new session without touching the store
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/token",
		url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refreshToken}, "")
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := parseResponse(resp, &tr); err != nil {
		return nil, err
	}
	session := tr.session(c.now())
	if session == nil {
		return nil, fmt.Errorf("provider returned no session")
	}
	return session, nil
}

// GetSession returns the stored session, refreshing it first when it is
// within the refresh margin of expiry. Returns nil, nil when signed out.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	session, err := c.store.Load(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	if !session.Expired(c.now(), c.refreshMargin) {
		return session, nil
	}

	refreshed, err := c.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		var apiErr *APIError
		if errors.Is(err, ErrNoSession) || (errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500) {
			// The refresh token is dead; the session is over
			c.warn("session refresh rejected, signing out", "error", err)
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				return nil, clearErr
			}
			c.emitter.Emit(EventSignedOut, nil)
		}
		return nil, err
	}

	if err := c.store.Save(ctx, refreshed); err != nil {
		return nil, err
	}
	c.debug("session refreshed")
	c.emitter.Emit(EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// GetUser fetches the current user from the provider, which also validates the session server-side
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/user", nil, nil, session.AccessToken)
	if err != nil {
		return nil, err
	}
	var user User
	if err := parseResponse(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session remotely, clears it locally and emits SIGNED_OUT.
// The local session is cleared even when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	session, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	var remoteErr error
	if session != nil && session.AccessToken != "" {
		resp, err := c.doRequest(ctx, http.MethodPost, "/logout", nil, nil, session.AccessToken)
		if err != nil {
			remoteErr = err
		} else if err := parseResponse(resp, nil); err != nil {
			var apiErr *APIError
			// Already-invalid sessions are as good as signed out
			if !errors.As(err, &apiErr) || (apiErr.Status != http.StatusUnauthorized &&
				apiErr.Status != http.StatusForbidden && apiErr.Status != http.StatusNotFound) {
				remoteErr = err
			}
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.emitter.Emit(EventSignedOut, nil)
	if remoteErr != nil {
		c.warn("remote sign-out failed", "error", remoteErr)
	}
	return remoteErr
}

// OnAuthStateChange registers fn for session events. The handle must be unsubscribed on teardown.
func (c *Client) OnAuthStateChange(fn Listener) *Subscription {
	return c.emitter.Subscribe(fn)
}

// establish persists a new session and notifies listeners
func (c *Client) establish(ctx context.Context, event Event, session *Session) error {
	if err := c.store.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	c.emitter.Emit(event, session)
	return nil
}

func newCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
