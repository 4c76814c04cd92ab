package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client talks to a GoTrue-compatible hosted auth API on behalf of one user-agent
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	store         Store
	emitter       *Emitter
	refreshMargin time.Duration
	now           func() time.Time
	logger        *slog.Logger

	refreshMu sync.Mutex
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithStore sets where the session is persisted (default: in memory)
func WithStore(s Store) Option {
	return func(c *Client) {
		if s != nil {
			c.store = s
		}
	}
}

// WithEmitter shares an event emitter between clients
func WithEmitter(e *Emitter) Option {
	return func(c *Client) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithRefreshMargin refreshes sessions this long before they expire (default 60s)
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.refreshMargin = d
		}
	}
}

// WithLogger sets a structured logger for client activity
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// withClock overrides time for tests
func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client for the auth API at baseURL (e.g. https://ref.supabase.co/auth/v1)
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid auth base URL %q", baseURL)
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		store:         NewMemoryStore(),
		emitter:       NewEmitter(),
		refreshMargin: 60 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Store returns the client's session store
func (c *Client) Store() Store {
	return c.store
}

// Emitter returns the client's event emitter
func (c *Client) Emitter() *Emitter {
	return c.emitter
}

// doRequest performs a JSON request against the auth API
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}, accessToken string) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	return resp, nil
}

// errorBody covers the error shapes the provider returns
type errorBody struct {
	Code             interface{} `json:"code"`
	ErrorCode        string      `json:"error_code"`
	Msg              string      `json:"msg"`
	Message          string      `json:"message"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

// parseResponse decodes a 2xx body into target or converts the failure into an *APIError
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Status: resp.StatusCode}

		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			apiErr.Code = firstNonEmpty(eb.ErrorCode, eb.Error)
			if s, ok := eb.Code.(string); ok && apiErr.Code == "" {
				apiErr.Code = s
			}
			apiErr.Message = firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription, eb.Error)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// tokenResponse is the provider's session payload
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *Session {
	if t.AccessToken == "" {
		return nil
	}
	s := &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		User:         t.User,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
