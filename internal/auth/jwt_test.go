package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("alice", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	caller, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if caller != "alice" {
		t.Fatalf("caller mismatch: got %q want %q", caller, "alice")
	}
}

func TestGenerateToken_NoExpiry(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("kitchen-tablet", secret, 0)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", claims.ExpiresAt)
	}
}

func TestGenerateToken_EmptyCaller(t *testing.T) {
	t.Parallel()

	if _, err := GenerateToken("  ", []byte("s"), time.Hour); !errors.Is(err, ErrEmptyCaller) {
		t.Fatalf("expected ErrEmptyCaller, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok := sign(t, secret, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	if _, err := ParseToken(tok, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("alice", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := ParseToken(tok, []byte("wrong-secret")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseToken_RejectsOtherIssuerAndMissingSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tests := map[string]jwt.RegisteredClaims{
		"other issuer":    {Issuer: "someone-else", Subject: "alice"},
		"missing subject": {Issuer: Issuer},
	}
	for name, claims := range tests {
		t.Run(name, func(t *testing.T) {
			tok := sign(t, secret, jwt.SigningMethodHS256, claims)
			if _, err := ParseToken(tok, secret); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok := sign(t, secret, jwt.SigningMethodHS512, jwt.RegisteredClaims{Issuer: Issuer, Subject: "alice"})

	if _, err := ParseToken(tok, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseToken("not-a-jwt", []byte("s")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func sign(t *testing.T, secret []byte, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}
