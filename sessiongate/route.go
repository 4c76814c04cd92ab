package sessiongate

import "strings"

// RouteClass is the per-request classification of a path
type RouteClass int

const (
	// RouteProtected is any gated path that is not an auth route
	RouteProtected RouteClass = iota
	// RouteAuth covers login, registration and auth callback paths
	RouteAuth
)

func (c RouteClass) String() string {
	if c == RouteAuth {
		return "auth"
	}
	return "protected"
}

// DefaultAuthPrefixes are the path prefixes treated as auth routes.
// Matching is a plain prefix test, so "/authors" is an auth route too.
var DefaultAuthPrefixes = []string{"/login", "/register", "/auth"}

// ClassifyPath maps a path to exactly one RouteClass
func ClassifyPath(path string, authPrefixes []string) RouteClass {
	for _, prefix := range authPrefixes {
		if strings.HasPrefix(path, prefix) {
			return RouteAuth
		}
	}
	return RouteProtected
}

// Outcome is what the gate does with a request
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeRedirectProtected
	OutcomeRedirectLogin
	// OutcomeSkipped means the matcher excluded the path and the gate did not run
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeRedirectProtected:
		return "redirect_protected"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Decide applies the gate's decision table
func Decide(claimsPresent bool, class RouteClass) Outcome {
	switch {
	case claimsPresent && class == RouteAuth:
		return OutcomeRedirectProtected
	case !claimsPresent && class == RouteProtected:
		return OutcomeRedirectLogin
	default:
		return OutcomePass
	}
}

// Verdict records how the gate arrived at claims presence.
// Routing treats VerdictVerificationFailed exactly like VerdictAnonymous;
// the distinction only surfaces in logs and metrics.
type Verdict int

const (
	VerdictAnonymous Verdict = iota
	VerdictAuthenticated
	VerdictVerificationFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictAuthenticated:
		return "authenticated"
	case VerdictVerificationFailed:
		return "verification_failed"
	}
	return "anonymous"
}
