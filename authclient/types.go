package authclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSession is returned by operations that need a signed-in session
var ErrNoSession = errors.New("authclient: no active session")

// Session is the token material issued by the provider
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"`
	User         *User     `json:"user,omitempty"`
}

// Expired reports whether the access token expires within margin of now
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// User is the provider's view of the authenticated principal
type User struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email,omitempty"`
	Phone            string                 `json:"phone,omitempty"`
	Role             string                 `json:"role,omitempty"`
	AppMetadata      map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
	Identities       []Identity             `json:"identities,omitempty"`
	CreatedAt        time.Time              `json:"created_at,omitempty"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time             `json:"last_sign_in_at,omitempty"`
}

// Identity links a user to a sign-in provider
type Identity struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

// DisplayName picks the best human-readable name from user metadata
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	for _, key := range []string{"full_name", "name"} {
		if v, ok := u.UserMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	first, _ := u.UserMetadata["first_name"].(string)
	last, _ := u.UserMetadata["last_name"].(string)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	}
	return "User"
}

// ProviderName returns the sign-in provider recorded in app metadata
func (u *User) ProviderName() string {
	if u == nil {
		return ""
	}
	p, _ := u.AppMetadata["provider"].(string)
	return p
}

// Event names a session lifecycle change
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// SignUpParams carries a registration request
type SignUpParams struct {
	Email      string
	Password   string
	Data       map[string]interface{} // stored as user metadata
	RedirectTo string                 // where the confirmation email link lands
}

// SignUpResult holds the new user and, when email confirmation is disabled, a session
type SignUpResult struct {
	User    *User
	Session *Session // nil while the email address awaits confirmation
}

// OAuthStart is the first leg of a PKCE OAuth sign-in
type OAuthStart struct {
	URL          string // provider authorize URL to send the browser to
	CodeVerifier string // keep server-side until the callback
}

// APIError is an error reported by the provider. Message is safe to show to users.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth provider error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth provider error %d: %s", e.Status, e.Message)
}

// ErrorCode returns the provider's machine-readable code
func (e *APIError) ErrorCode() string {
	return e.Code
}

// UserMessage extracts a user-visible message from err
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrNoSession) {
		return "No active session"
	}
	return "Something went wrong. Please try again."
}
