// Package auth implements C8: verification of the symmetrically-signed
// bearer token presented at WebSocket handshake. This core never issues
// tokens — that is the external web front-end's job — it only validates.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the identity the bearer token must carry.
type Claims struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates handshake bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier panics if secret is empty — a missing secret is a fatal
// server misconfiguration, not a runtime error to recover from.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		panic("auth: AUTH_SECRET must not be empty")
	}
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a bearer token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == uuid.Nil || claims.Email == "" || claims.Name == "" {
		return nil, fmt.Errorf("token missing required claims")
	}
	return claims, nil
}
