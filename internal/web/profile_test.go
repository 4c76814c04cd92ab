package web

import (
	"strings"
	"testing"
	"time"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

func TestNewProfile(t *testing.T) {
	confirmed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	t.Run("full user", func(t *testing.T) {
		p := newProfile(&authclient.User{
			ID:               "user-123",
			Email:            "ada@example.com",
			Phone:            "+15550100",
			AppMetadata:      map[string]interface{}{"provider": "google"},
			UserMetadata:     map[string]interface{}{"name": "Ada", "avatar_url": "https://img.example.com/a.png"},
			Identities:       []authclient.Identity{{Provider: "google"}, {Provider: "github"}},
			CreatedAt:        confirmed,
			EmailConfirmedAt: &confirmed,
			LastSignInAt:     &confirmed,
		})
		if p.Name != "Ada" || p.AvatarURL != "https://img.example.com/a.png" {
			t.Errorf("name/avatar = %q/%q", p.Name, p.AvatarURL)
		}
		if p.Provider != "google" || p.Identities != "google, github" {
			t.Errorf("provider/identities = %q/%q", p.Provider, p.Identities)
		}
		if p.EmailConfirmed != "2024-05-06 07:08:09 UTC" || p.LastSignIn != p.EmailConfirmed {
			t.Errorf("times = %q/%q", p.EmailConfirmed, p.LastSignIn)
		}
		if !strings.Contains(p.Metadata, `"avatar_url"`) {
			t.Errorf("metadata = %s", p.Metadata)
		}
	})

	t.Run("bare user", func(t *testing.T) {
		p := newProfile(&authclient.User{ID: "user-123"})
		want := Profile{
			Name:           "User",
			ID:             "user-123",
			Phone:          "—",
			Provider:       "—",
			Identities:     "—",
			EmailConfirmed: "No",
			CreatedAt:      "—",
			LastSignIn:     "—",
			Metadata:       "{}",
		}
		if p != want {
			t.Errorf("profile = %+v, want %+v", p, want)
		}
	})
}
