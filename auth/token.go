// Package auth extracts the local user's identity from the access
// token issued by the server. The client never verifies the signature
// (it does not hold the secret); it only reads the claims and rejects
// tokens that already expired, so a stale session fails fast instead
// of at the first API call.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"convosync/errors"
)

// CustomClaims is the claims payload the server puts in access tokens.
type CustomClaims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Identity parses the token without signature verification and returns
// the embedded claims. An expired token returns ErrTokenExpired.
func Identity(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, errors.ErrTokenExpired
	}
	return claims, nil
}
