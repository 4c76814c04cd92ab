package sessiontoken

import (
	"context"
	"errors"
	"net/http"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
)

// Verifier checks provider session cookies and refreshes expired access tokens.
// It implements sessiongate.ClaimsVerifier.
type Verifier struct {
	cfg *Config
}

var _ sessiongate.ClaimsVerifier = (*Verifier)(nil)

// NewVerifier creates a verifier from cfg
func NewVerifier(cfg *Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// New builds a Config from opts and wraps it in a Verifier
func New(opts ...ConfigOption) (*Verifier, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return NewVerifier(cfg), nil
}

// Config returns the verifier's configuration
func (v *Verifier) Config() *Config {
	return v.cfg
}

// VerifyClaims implements sessiongate.ClaimsVerifier.
//
// A request with no session cookies is anonymous (nil, nil, nil). An expired
// access token is refreshed at most once; the new tokens, or the deletion of
// rejected ones, are returned as cookie mutations.
func (v *Verifier) VerifyClaims(ctx context.Context, cookies []*http.Cookie) (*sessiongate.Claims, []*http.Cookie, error) {
	store := authclient.NewCookieStore(cookies, v.cfg.cookies)
	session, err := store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, nil
	}

	if session.AccessToken != "" {
		claims, err := parseAndValidate(session.AccessToken, v.cfg)
		if err == nil {
			return claims, nil, nil
		}
		if codeOf(err) != ErrExpired || session.RefreshToken == "" || v.cfg.refresher == nil {
			return nil, nil, err
		}
	} else if session.RefreshToken == "" || v.cfg.refresher == nil {
		return nil, nil, NewTokenError(ErrMissingToken, "no access token", nil)
	}

	return v.refresh(ctx, store, session.RefreshToken)
}

// refresh trades the refresh token for a new session and verifies the new access token
func (v *Verifier) refresh(ctx context.Context, store *authclient.CookieStore, refreshToken string) (*sessiongate.Claims, []*http.Cookie, error) {
	refreshed, err := v.cfg.refresher.RefreshSession(ctx, refreshToken)
	if err != nil {
		var apiErr *authclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			// The provider rejected the refresh token, so the cookies are dead weight
			_ = store.Clear(ctx)
			v.warn("session refresh rejected, clearing cookies", "status", apiErr.Status, "code", apiErr.Code)
		} else {
			v.warn("session refresh failed", "error", err)
		}
		return nil, store.Mutations(), NewTokenError(ErrRefreshFailed, "session refresh failed", err)
	}
	if refreshed == nil {
		return nil, nil, NewTokenError(ErrRefreshFailed, "provider returned no session", nil)
	}

	if err := store.Save(ctx, refreshed); err != nil {
		return nil, nil, NewTokenError(ErrRefreshFailed, "failed to persist refreshed session", err)
	}

	claims, err := parseAndValidate(refreshed.AccessToken, v.cfg)
	if err != nil {
		return nil, store.Mutations(), err
	}
	v.debug("session refreshed", "user_id", claims.Subject)
	return claims, store.Mutations(), nil
}

func (v *Verifier) debug(msg string, args ...interface{}) {
	if v.cfg.logger != nil {
		v.cfg.logger.Debug(msg, args...)
	}
}

func (v *Verifier) warn(msg string, args ...interface{}) {
	if v.cfg.logger != nil {
		v.cfg.logger.Warn(msg, args...)
	}
}
