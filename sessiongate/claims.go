package sessiongate

import "time"

// Claims is the verified projection of a session.
// A non-nil *Claims always means an authenticated principal.
type Claims struct {
	Subject   string                 // User identifier (sub claim)
	Email     string                 // Email claim, empty when the provider omits it
	Role      string                 // Provider role claim (e.g. "authenticated")
	SessionID string                 // Provider session id (session_id claim)
	Issuer    string                 // Token issuer (iss claim)
	Audience  string                 // Intended audience (aud claim)
	ExpiresAt time.Time              // Expiration time (exp claim)
	IssuedAt  time.Time              // Issue time (iat claim)
	Custom    map[string]interface{} // Remaining non-standard claims
}

// Anonymous reports whether c represents no principal.
func (c *Claims) Anonymous() bool {
	return c == nil || c.Subject == ""
}
