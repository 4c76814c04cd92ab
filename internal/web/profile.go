package web

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Profile is the dashboard's view of a user
type Profile struct {
	Name           string
	Email          string
	AvatarURL      string
	ID             string
	Phone          string
	Provider       string
	Identities     string
	EmailConfirmed string
	CreatedAt      string
	LastSignIn     string
	Metadata       string
}

func newProfile(u *authclient.User) Profile {
	p := Profile{
		Name:           u.DisplayName(),
		Email:          u.Email,
		ID:             u.ID,
		Phone:          orDash(u.Phone),
		Provider:       orDash(u.ProviderName()),
		EmailConfirmed: "No",
		CreatedAt:      "—",
		LastSignIn:     "—",
		Metadata:       "{}",
	}
	if avatar, ok := u.UserMetadata["avatar_url"].(string); ok {
		p.AvatarURL = avatar
	}

	providers := make([]string, 0, len(u.Identities))
	for _, id := range u.Identities {
		providers = append(providers, id.Provider)
	}
	p.Identities = orDash(strings.Join(providers, ", "))

	if u.EmailConfirmedAt != nil {
		p.EmailConfirmed = formatTime(*u.EmailConfirmedAt)
	}
	if !u.CreatedAt.IsZero() {
		p.CreatedAt = formatTime(u.CreatedAt)
	}
	if u.LastSignInAt != nil {
		p.LastSignIn = formatTime(*u.LastSignInAt)
	}
	if len(u.UserMetadata) > 0 {
		if raw, err := json.MarshalIndent(u.UserMetadata, "", "  "); err == nil {
			p.Metadata = string(raw)
		}
	}
	return p
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
