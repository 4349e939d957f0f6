package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")

	token, err := SignJWT(Claims{Sub: "acct-1", Email: "a@example.com", Name: "Ada", Plan: "free"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := VerifyJWT(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Sub != "acct-1" || claims.Email != "a@example.com" || claims.Name != "Ada" || claims.Plan != "free" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Exp-claims.Iat != int64(TokenTTL/time.Second) {
		t.Fatalf("expected default ttl, got %d", claims.Exp-claims.Iat)
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	valid, err := SignJWT(Claims{Sub: "acct-1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	parts := strings.Split(valid, ".")
	parts[2] = parts[2][:len(parts[2])-2] + "xx"
	tampered := strings.Join(parts, ".")

	past := time.Now().Add(-time.Hour).Unix()
	expired, err := SignJWT(Claims{Sub: "acct-1", Iat: past - 10, Exp: past})
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign foreign: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "acct-1",
		Issuer:  issuer,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := map[string]string{
		"tampered": tampered,
		"expired":  expired,
		"issuer":   foreign,
		"alg none": unsigned,
		"garbage":  "not.a.token",
	}
	for name, token := range tests {
		if _, err := VerifyJWT(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "first")
	token, err := SignJWT(Claims{Sub: "acct-1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	t.Setenv("JWT_SECRET", "second")
	if _, err := VerifyJWT(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSecretRequiredInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENV", "production")
	if _, err := SignJWT(Claims{Sub: "acct-1"}); !errors.Is(err, errMissingSecret) {
		t.Fatalf("expected errMissingSecret, got %v", err)
	}
}
