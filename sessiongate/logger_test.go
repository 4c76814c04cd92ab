package sessiongate

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
)

type codedTestError struct{ code string }

func (e codedTestError) Error() string     { return "coded: " + e.code }
func (e codedTestError) ErrorCode() string { return e.code }

func newBufferedLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))
	return logger, &buf
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got none")
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse log line %q: %v", line, err)
	}
	return entry
}

func TestGateLogsVerificationFailure(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)
	v := &stubVerifier{err: codedTestError{code: "EXPIRED"}}
	router := newGinRouter(t, v, WithLogger(logger))

	serve(router, "/dashboard")

	entry := decodeLogLine(t, buf)
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level, got %v", entry["level"])
	}
	event, ok := entry["gate_event"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected gate_event group, got %v", entry)
	}
	if event["failure_reason"] != "EXPIRED" {
		t.Errorf("expected failure_reason EXPIRED, got %v", event["failure_reason"])
	}
	if event["verdict"] != "verification_failed" {
		t.Errorf("expected verdict verification_failed, got %v", event["verdict"])
	}
	if event["redirect_to"] != "/login" {
		t.Errorf("expected redirect_to /login, got %v", event["redirect_to"])
	}
}

func TestGateLogsRedirectWithRedactedSession(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelWarn)
	router := newGinRouter(t, &stubVerifier{claims: validClaims(), mutations: refreshedCookies()}, WithLogger(logger))

	serve(router, "/login")

	entry := decodeLogLine(t, buf)
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level for a redirect, got %v", entry["level"])
	}
	event := entry["gate_event"].(map[string]interface{})
	if event["user_id"] != "user-123" {
		t.Errorf("expected user_id user-123, got %v", event["user_id"])
	}
	if event["session"] != "session-..." {
		t.Errorf("expected redacted session, got %v", event["session"])
	}
	if event["refreshed"] != true {
		t.Errorf("expected refreshed=true, got %v", event["refreshed"])
	}
}

func TestGatePassLogsOnlyAtDebug(t *testing.T) {
	logger, buf := newBufferedLogger(slog.LevelInfo)
	router := newGinRouter(t, &stubVerifier{claims: validClaims()}, WithLogger(logger))

	serve(router, "/dashboard")

	if buf.Len() != 0 {
		t.Errorf("expected no log output at info level for pass, got %s", buf.String())
	}

	debugLogger, debugBuf := newBufferedLogger(slog.LevelDebug)
	router = newGinRouter(t, &stubVerifier{claims: validClaims()}, WithLogger(debugLogger))
	serve(router, "/dashboard")

	if !strings.Contains(debugBuf.String(), "request admitted") {
		t.Errorf("expected debug admission log, got %s", debugBuf.String())
	}
}

func TestRedactToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "***"},
		{"12345678", "***"},
		{"123456789", "12345678..."},
	}
	for _, tt := range tests {
		if got := redactToken(tt.in); got != tt.want {
			t.Errorf("redactToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("x"), "UNKNOWN"},
		{"panic", NewGateError(ErrVerifierPanic, "p", nil), "VERIFIER_PANIC"},
		{"wrapped coded", NewGateError(ErrVerificationFailed, "v", codedTestError{"REFRESH_FAILED"}), "REFRESH_FAILED"},
		{"wrapped plain", NewGateError(ErrVerificationFailed, "v", errors.New("dial tcp")), "VERIFICATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureReason(tt.err); got != tt.want {
				t.Errorf("failureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNilLoggerDisablesLogging(t *testing.T) {
	// Must not panic
	logGateEvent(nil, Result{Outcome: OutcomeRedirectLogin}, "/dashboard")
	writeCookies(nilResponseWriter{}, nil)
}

type nilResponseWriter struct{}

func (nilResponseWriter) Header() http.Header       { return http.Header{} }
func (nilResponseWriter) Write(b []byte) (int, error) { return len(b), nil }
func (nilResponseWriter) WriteHeader(int)             {}
