package sessiontoken

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Wang-tianhao/vibrant-session-gate/sessiongate"
)

// standardClaims are mapped onto sessiongate.Claims fields and kept out of Custom
var standardClaims = map[string]bool{
	"sub": true, "iss": true, "aud": true, "exp": true, "nbf": true,
	"iat": true, "jti": true, "email": true, "role": true, "session_id": true,
}

// parseAndValidate verifies an access token and projects it into gate claims
func parseAndValidate(tokenString string, cfg *Config) (*sessiongate.Claims, error) {
	if tokenString == "" {
		return nil, NewTokenError(ErrMissingToken, "no access token", nil)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(cfg.clockSkewLeeway),
		jwt.WithTimeFunc(cfg.now),
		jwt.WithIssuedAt(),
	}
	if cfg.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.issuer))
	}
	if cfg.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.audience))
	}

	mapClaims := jwt.MapClaims{}
	token, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenString, mapClaims, func(token *jwt.Token) (interface{}, error) {
		return validateAlgorithm(token, cfg)
	})
	if err != nil {
		// The JWT library wraps keyfunc errors, so unwrap ours first
		var tokErr *TokenError
		if errors.As(err, &tokErr) {
			return nil, tokErr
		}

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, NewTokenError(ErrExpired, "token has expired", err)
		case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, NewTokenError(ErrExpired, "token is not valid yet", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, NewTokenError(ErrInvalidSignature, "invalid signature", err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, NewTokenError(ErrInvalidClaims, "token issuer or audience mismatch", err)
		}
		return nil, NewTokenError(ErrMalformed, "malformed token", err)
	}

	if !token.Valid {
		return nil, NewTokenError(ErrInvalidSignature, "token is invalid", nil)
	}

	if err := validateRequiredClaims(mapClaims, cfg); err != nil {
		return nil, err
	}

	claims := mapJWTClaims(mapClaims)
	if claims.Subject == "" {
		return nil, NewTokenError(ErrMalformed, "token has no subject", nil)
	}
	return claims, nil
}

// validateAlgorithm ensures the token uses a configured algorithm and returns its key
func validateAlgorithm(token *jwt.Token, cfg *Config) (interface{}, error) {
	alg, ok := token.Header["alg"].(string)
	if !ok {
		if _, exists := token.Header["alg"]; exists {
			return nil, NewTokenError(ErrMalformedAlgorithmHeader, "algorithm header must be a string", nil)
		}
		return nil, NewTokenError(ErrMalformed, "missing algorithm in token header", nil)
	}

	if strings.EqualFold(alg, "none") {
		return nil, NewTokenError(ErrNoneAlgorithm, "none algorithm not allowed", nil)
	}

	validator, exists := cfg.getValidator(alg)
	if !exists {
		return nil, NewTokenError(
			ErrUnsupportedAlgorithm,
			fmt.Sprintf("algorithm %s not supported (available: %s)", alg, strings.Join(cfg.AvailableAlgorithms(), ", ")),
			nil,
		)
	}

	// Algorithm confusion: the header and the resolved signing method must agree
	if token.Method.Alg() != validator.signingMethod.Alg() {
		return nil, NewTokenError(
			ErrInvalidSignature,
			fmt.Sprintf("algorithm confusion detected: token method %s does not match expected method %s",
				token.Method.Alg(), validator.signingMethod.Alg()),
			nil,
		)
	}

	return validator.signingKey, nil
}

// mapJWTClaims converts provider token claims into gate claims
func mapJWTClaims(mapClaims jwt.MapClaims) *sessiongate.Claims {
	claims := &sessiongate.Claims{
		Custom: make(map[string]interface{}),
	}

	claims.Subject, _ = mapClaims.GetSubject()
	claims.Issuer, _ = mapClaims.GetIssuer()
	if aud, err := mapClaims.GetAudience(); err == nil && len(aud) > 0 {
		claims.Audience = aud[0]
	}
	claims.Email, _ = mapClaims["email"].(string)
	claims.Role, _ = mapClaims["role"].(string)
	claims.SessionID, _ = mapClaims["session_id"].(string)

	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	for key, value := range mapClaims {
		if !standardClaims[key] {
			claims.Custom[key] = value
		}
	}
	return claims
}

// validateRequiredClaims ensures all required claims are present
func validateRequiredClaims(mapClaims jwt.MapClaims, cfg *Config) error {
	for _, claimName := range cfg.requiredClaims {
		if _, ok := mapClaims[claimName]; !ok {
			return NewTokenError(
				ErrMalformed,
				fmt.Sprintf("required claim missing: %s", claimName),
				nil,
			)
		}
	}
	return nil
}
