// Package auth issues and verifies the bearer tokens that identify a caller.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into and required on every token.
const Issuer = "shoplist"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptyCaller  = errors.New("caller is required")
)

// Claims carries the registered claims; the caller is the token subject.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token naming caller. A non-positive ttl
// produces a token without expiry.
func GenerateToken(caller string, secret []byte, ttl time.Duration) (string, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return "", ErrEmptyCaller
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   Issuer,
			Subject:  caller,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies tokenString and returns the caller it names.
func ParseToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
