package ws

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when a session token is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// sessionClaims is the claim set of tokens issued by the auth service.
// The subject carries the account identifier.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// VerifySessionToken validates an HS256 session token and returns the
// account identifier from its subject claim.
//
// Precondition: secret must be the shared HS256 signing key.
// Postcondition: Returns the account ID, or an error wrapping
// ErrUnauthorized.
func VerifySessionToken(secret, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("%w: token missing subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// tokenFromRequest extracts the session token from the Authorization
// header or the session-token cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie("session-token"); err == nil {
		return cookie.Value
	}
	return ""
}
