package sessiongate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in and out of the gate
const RequestIDHeader = "X-Request-ID"

// Result is the gate's decision for one request
type Result struct {
	Outcome     Outcome
	Verdict     Verdict
	Class       RouteClass
	Claims      *Claims
	Cookies     []*http.Cookie // mutations from claims verification, written on every branch
	RedirectURL string         // set for the two redirect outcomes
	RequestID   string
	Err         error // verification failure, if any; never fatal
	Latency     time.Duration
}

// Evaluate runs the gate's decision procedure for r without writing a response.
// Verification is the only blocking step; everything else is pure.
func Evaluate(ctx context.Context, cfg *Config, r *http.Request) Result {
	startTime := time.Now()

	if !cfg.matcher.Matches(r.URL.Path) {
		return Result{Outcome: OutcomeSkipped}
	}

	// Generate or extract request ID for correlation
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	claims, mutations, err := verifyClaims(ctx, cfg, r.Cookies())

	res := Result{
		Claims:    claims,
		Cookies:   mutations,
		RequestID: requestID,
		Err:       err,
	}
	switch {
	case err != nil:
		res.Verdict = VerdictVerificationFailed
	case claims != nil:
		res.Verdict = VerdictAuthenticated
	default:
		res.Verdict = VerdictAnonymous
	}

	res.Class = ClassifyPath(r.URL.Path, cfg.authPrefixes)
	res.Outcome = Decide(claims != nil, res.Class)

	switch res.Outcome {
	case OutcomeRedirectProtected:
		res.RedirectURL = redirectTarget(r.URL, cfg.protectedEntry)
	case OutcomeRedirectLogin:
		res.RedirectURL = redirectTarget(r.URL, cfg.loginEntry)
	}

	res.Latency = time.Since(startTime)
	logGateEvent(cfg.logger, res, r.URL.Path)
	cfg.metrics.observe(res)
	return res
}

// verifyClaims calls the provider and folds every failure mode, including
// panics, into an error. Claims are nil whenever err is non-nil.
func verifyClaims(ctx context.Context, cfg *Config, cookies []*http.Cookie) (claims *Claims, mutations []*http.Cookie, err error) {
	if cfg.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.verifyTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			claims = nil
			err = NewGateError(ErrVerifierPanic, fmt.Sprintf("claims verifier panicked: %v", rec), nil)
		}
	}()

	claims, mutations, err = cfg.verifier.VerifyClaims(ctx, cookies)
	if err != nil {
		return nil, mutations, NewGateError(ErrVerificationFailed, "claims verification failed", err)
	}
	if claims.Anonymous() {
		return nil, mutations, nil
	}
	return claims, mutations, nil
}

// redirectTarget swaps the path of the current URL and keeps its query
func redirectTarget(current *url.URL, path string) string {
	target := url.URL{Path: path, RawQuery: current.RawQuery}
	return target.String()
}

// writeCookies emits every cookie mutation as a Set-Cookie header
func writeCookies(w http.ResponseWriter, mutations []*http.Cookie) {
	for _, cookie := range mutations {
		if cookie == nil || cookie.Name == "" {
			continue
		}
		http.SetCookie(w, cookie)
	}
}

// forwardCookies rewrites the inbound Cookie header so handlers behind the
// gate observe refreshed tokens. Deleted cookies (MaxAge < 0) are dropped.
func forwardCookies(r *http.Request, mutations []*http.Cookie) {
	if len(mutations) == 0 {
		return
	}

	current := r.Cookies()
	index := make(map[string]int, len(current))
	for i, c := range current {
		index[c.Name] = i
	}

	for _, m := range mutations {
		if m == nil || m.Name == "" {
			continue
		}
		i, exists := index[m.Name]
		deleted := m.MaxAge < 0 || m.Value == ""
		switch {
		case deleted && exists:
			current[i] = nil
		case !deleted && exists:
			current[i] = &http.Cookie{Name: m.Name, Value: m.Value}
		case !deleted:
			index[m.Name] = len(current)
			current = append(current, &http.Cookie{Name: m.Name, Value: m.Value})
		}
	}

	pairs := make([]string, 0, len(current))
	for _, c := range current {
		if c == nil {
			continue
		}
		pairs = append(pairs, (&http.Cookie{Name: c.Name, Value: c.Value}).String())
	}
	r.Header.Del("Cookie")
	if len(pairs) > 0 {
		r.Header.Set("Cookie", strings.Join(pairs, "; "))
	}
}

// admit prepares the request handed to downstream handlers on pass-through
func admit(r *http.Request, res Result) *http.Request {
	forwardCookies(r, res.Cookies)
	ctx := WithRequestID(r.Context(), res.RequestID)
	if res.Claims != nil {
		ctx = WithClaims(ctx, res.Claims)
	}
	return r.WithContext(ctx)
}
