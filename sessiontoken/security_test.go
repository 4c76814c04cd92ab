package sessiontoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestDualConfigHeaderSwap covers a token signed with HS256 that claims RS256
func TestDualConfigHeaderSwap(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := mustConfig(t, WithHS256(testSecret), WithRS256(&privateKey.PublicKey))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims(time.Now().Add(time.Hour)))
	token.Header["alg"] = "RS256"
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := parseAndValidate(signed, cfg)
	if claims != nil {
		t.Fatal("header-swapped token must not yield claims")
	}
	assertCode(t, err, ErrInvalidSignature)
}

// TestPublicKeyAsHMACSecret covers signing HS256 with the RSA public key bytes
func TestPublicKeyAsHMACSecret(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	cfg := mustConfig(t, WithRS256(&privateKey.PublicKey))
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims(time.Now().Add(time.Hour))).SignedString(pemBytes)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parseAndValidate(forged, cfg)
	assertCode(t, err, ErrUnsupportedAlgorithm)
}

func TestSignatureWithWrongSecret(t *testing.T) {
	cfg := mustConfig(t, WithHS256(testSecret))
	other := []byte("another-secret-that-is-also-32-bytes-long!!")

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims(time.Now().Add(time.Hour))).SignedString(other)
	if err != nil {
		t.Fatal(err)
	}
	_, err = parseAndValidate(signed, cfg)
	assertCode(t, err, ErrInvalidSignature)
}
