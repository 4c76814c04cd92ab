package sessiongate

import (
	"context"
	"log/slog"
	"time"
)

// GateEvent represents a structured log entry for one gated request
type GateEvent struct {
	Outcome       string        // pass, redirect_protected, redirect_login
	Verdict       string        // authenticated, anonymous, verification_failed
	Route         string        // auth or protected
	Path          string        // Request path
	RedirectTo    string        // Redirect target, empty on pass
	RequestID     string        // Correlation ID
	UserID        string        // Subject from claims (empty when anonymous)
	SessionID     string        // Provider session (redacted)
	FailureReason string        // Error code (on verification failure)
	Refreshed     bool          // Verification produced cookie mutations
	Latency       time.Duration // Decision latency including verification
}

// LogValue implements slog.LogValuer for structured logging with redaction
func (e GateEvent) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("outcome", e.Outcome),
		slog.String("verdict", e.Verdict),
		slog.String("route", e.Route),
		slog.String("path", e.Path),
		slog.String("request_id", e.RequestID),
		slog.Duration("latency", e.Latency),
	}
	if e.RedirectTo != "" {
		attrs = append(attrs, slog.String("redirect_to", e.RedirectTo))
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.SessionID != "" {
		attrs = append(attrs, slog.String("session", redactToken(e.SessionID)))
	}
	if e.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", e.FailureReason))
	}
	if e.Refreshed {
		attrs = append(attrs, slog.Bool("refreshed", true))
	}
	return slog.GroupValue(attrs...)
}

// redactToken redacts sensitive token data
func redactToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

func newGateEvent(res Result, path string) GateEvent {
	event := GateEvent{
		Outcome:       res.Outcome.String(),
		Verdict:       res.Verdict.String(),
		Route:         res.Class.String(),
		Path:          path,
		RedirectTo:    res.RedirectURL,
		RequestID:     res.RequestID,
		FailureReason: failureReason(res.Err),
		Refreshed:     len(res.Cookies) > 0,
		Latency:       res.Latency,
	}
	if res.Claims != nil {
		event.UserID = res.Claims.Subject
		event.SessionID = res.Claims.SessionID
	}
	return event
}

// logGateEvent emits a gate event via the configured logger.
// Failures and redirects log at Warn; plain passes only at Debug.
func logGateEvent(logger *slog.Logger, res Result, path string) {
	if logger == nil {
		return // Logging disabled
	}

	event := newGateEvent(res, path)
	switch {
	case res.Verdict == VerdictVerificationFailed:
		logger.Warn("session verification failed", "gate_event", event)
	case res.Outcome != OutcomePass:
		logger.Warn("request redirected", "gate_event", event)
	default:
		if logger.Enabled(context.Background(), slog.LevelDebug) {
			logger.Debug("request admitted", "gate_event", event)
		}
	}
}
