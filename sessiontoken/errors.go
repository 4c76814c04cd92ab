package sessiontoken

import (
	"errors"
	"fmt"
)

// ErrorCode represents a token verification error code
type ErrorCode string

const (
	ErrExpired                  ErrorCode = "EXPIRED"
	ErrInvalidSignature         ErrorCode = "INVALID_SIGNATURE"
	ErrMissingToken             ErrorCode = "MISSING_TOKEN"
	ErrMalformed                ErrorCode = "MALFORMED"
	ErrNoneAlgorithm            ErrorCode = "NONE_ALGORITHM"
	ErrUnsupportedAlgorithm     ErrorCode = "UNSUPPORTED_ALGORITHM"
	ErrMalformedAlgorithmHeader ErrorCode = "MALFORMED_ALGORITHM_HEADER"
	ErrInvalidClaims            ErrorCode = "INVALID_CLAIMS"
	ErrRefreshFailed            ErrorCode = "REFRESH_FAILED"
	ErrConfigError              ErrorCode = "CONFIG_ERROR"
)

// TokenError represents a session token failure with a code and message
type TokenError struct {
	Code     ErrorCode
	Message  string
	Internal error
}

// Error implements the error interface
func (e *TokenError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *TokenError) Unwrap() error {
	return e.Internal
}

// ErrorCode returns the code as a plain string for log correlation
func (e *TokenError) ErrorCode() string {
	return string(e.Code)
}

// NewTokenError creates a new token error
func NewTokenError(code ErrorCode, message string, internal error) *TokenError {
	return &TokenError{
		Code:     code,
		Message:  message,
		Internal: internal,
	}
}

// codeOf returns the TokenError code of err, or "" for other errors
func codeOf(err error) ErrorCode {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
