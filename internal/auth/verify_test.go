package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID uuid.UUID) Claims {
	return Claims{
		UserID: userID,
		Email:  "alice@example.com",
		Name:   "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_VerifyAcceptsValidToken(t *testing.T) {
	v := NewVerifier("test-secret")
	userID := uuid.New()
	token := signToken(t, "test-secret", validClaims(userID))

	claims, err := v.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestVerifier_VerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "other-secret", validClaims(uuid.New()))

	_, err := v.Verify(token)

	assert.Error(t, err)
}

func TestVerifier_VerifyRejectsExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	claims := validClaims(uuid.New())
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := signToken(t, "test-secret", claims)

	_, err := v.Verify(token)

	assert.Error(t, err)
}

func TestVerifier_VerifyRejectsMissingRequiredClaims(t *testing.T) {
	v := NewVerifier("test-secret")
	claims := validClaims(uuid.Nil)
	token := signToken(t, "test-secret", claims)

	_, err := v.Verify(token)

	assert.ErrorContains(t, err, "missing required claims")
}

func TestNewVerifier_PanicsOnEmptySecret(t *testing.T) {
	assert.Panics(t, func() {
		NewVerifier("")
	})
}
