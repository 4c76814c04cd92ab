package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

type options struct {
	secret    string
	subject   string
	email     string
	role      string
	audience  string
	issuer    string
	sessionID string
	ttl       time.Duration
	cookies   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HS256 project secret, minimum 32 bytes (default $AUTH_JWT_SECRET)")
	flag.StringVar(&opts.subject, "sub", uuid.NewString(), "Subject (user ID)")
	flag.StringVar(&opts.email, "email", "user@example.com", "Email address")
	flag.StringVar(&opts.role, "role", "authenticated", "Provider role claim")
	flag.StringVar(&opts.audience, "aud", "authenticated", "Audience claim")
	flag.StringVar(&opts.issuer, "iss", "", "Issuer claim, e.g. https://ref.supabase.co/auth/v1")
	flag.StringVar(&opts.sessionID, "session-id", uuid.NewString(), "Provider session id")
	flag.DurationVar(&opts.ttl, "ttl", time.Hour, "Token validity; negative values mint an expired token")
	flag.BoolVar(&opts.cookies, "cookies", false, "Print a Cookie header instead of the bare token")
	flag.Parse()

	if err := run(os.Stdout, opts, time.Now()); err != nil {
		log.Fatal(err)
	}
}

func mint(opts options, now time.Time) (string, error) {
	if len(opts.secret) < 32 {
		return "", fmt.Errorf("secret must be at least 32 bytes")
	}

	claims := jwt.MapClaims{
		"sub":        opts.subject,
		"email":      opts.email,
		"role":       opts.role,
		"aud":        opts.audience,
		"session_id": opts.sessionID,
		"exp":        now.Add(opts.ttl).Unix(),
		"iat":        now.Unix(),
	}
	if opts.issuer != "" {
		claims["iss"] = opts.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(opts.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func run(w io.Writer, opts options, now time.Time) error {
	token, err := mint(opts, now)
	if err != nil {
		return err
	}

	if opts.cookies {
		fmt.Fprintf(w, "Cookie: %s=%s\n", authclient.DefaultAccessCookie, token)
		return nil
	}

	fmt.Fprintln(w, "\n=== Session Token Generated ===")
	fmt.Fprintf(w, "\nToken: %s\n\n", token)
	fmt.Fprintln(w, "Claims:")
	fmt.Fprintf(w, "  Subject:    %s\n", opts.subject)
	fmt.Fprintf(w, "  Email:      %s\n", opts.email)
	fmt.Fprintf(w, "  Role:       %s\n", opts.role)
	fmt.Fprintf(w, "  Session ID: %s\n", opts.sessionID)
	fmt.Fprintf(w, "  Expires:    %s\n\n", now.Add(opts.ttl).Format(time.RFC3339))
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  curl -b '%s=%s' http://localhost:3000/dashboard\n\n", authclient.DefaultAccessCookie, token)
	return nil
}
