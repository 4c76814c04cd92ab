package sessiongate

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why the gate could not establish a principal
type ErrorCode string

const (
	ErrMissingSession     ErrorCode = "MISSING_SESSION"
	ErrVerificationFailed ErrorCode = "VERIFICATION_FAILED"
	ErrVerifierPanic      ErrorCode = "VERIFIER_PANIC"
	ErrConfigError        ErrorCode = "CONFIG_ERROR"
)

// GateError is returned by configuration and recorded for failed verifications
type GateError struct {
	Code     ErrorCode
	Message  string
	Internal error
}

// Error implements the error interface
func (e *GateError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GateError) Unwrap() error {
	return e.Internal
}

// NewGateError creates a new gate error
func NewGateError(code ErrorCode, message string, internal error) *GateError {
	return &GateError{
		Code:     code,
		Message:  message,
		Internal: internal,
	}
}

// failureReason returns a short code for logs and metrics.
// Verifier errors that expose a Code() string method (token errors do) keep their own code.
func failureReason(err error) string {
	if err == nil {
		return ""
	}
	var gateErr *GateError
	if errors.As(err, &gateErr) {
		if gateErr.Code == ErrVerificationFailed && gateErr.Internal != nil {
			if coded := codeOf(gateErr.Internal); coded != "" {
				return coded
			}
		}
		return string(gateErr.Code)
	}
	if coded := codeOf(err); coded != "" {
		return coded
	}
	return "UNKNOWN"
}

type codedError interface {
	ErrorCode() string
}

func codeOf(err error) string {
	var coded codedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}
