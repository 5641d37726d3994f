package turncred

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMint_UsernameEncodesExpiryAndLabel(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	creds := Mint("shared-secret", "meetuser", "turn:turn.example.com:3478", "stun:stun.example.com:3478", now)

	expectedExpiry := now.Add(ttl).Unix()
	assert.Equal(t, fmt.Sprintf("%d:meetuser", expectedExpiry), creds.Username)
}

func TestMint_CredentialIsHMACOfUsername(t *testing.T) {
	now := time.Now()
	secret := "shared-secret"
	creds := Mint(secret, "meetuser", "turn:turn.example.com:3478", "stun:stun.example.com:3478", now)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(creds.Username))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, creds.Credential)
}

func TestMint_URLsIncludeStunAndOptionalTurn(t *testing.T) {
	now := time.Now()

	withTurn := Mint("s", "u", "turn:turn.example.com:3478", "stun:stun.example.com:3478", now)
	assert.Equal(t, []string{"stun:stun.example.com:3478", "turn:turn.example.com:3478"}, withTurn.URLs)

	withoutTurn := Mint("s", "u", "", "stun:stun.example.com:3478", now)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, withoutTurn.URLs)
}

func TestMint_DifferentSecretsProduceDifferentCredentials(t *testing.T) {
	now := time.Now()
	a := Mint("secret-a", "u", "", "stun:stun.example.com:3478", now)
	b := Mint("secret-b", "u", "", "stun:stun.example.com:3478", now)
	assert.NotEqual(t, a.Credential, b.Credential)
	assert.Equal(t, a.Username, b.Username)
}
