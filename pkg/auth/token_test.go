package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to generate fresh keys for each test
func generateTestKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privPEM, pubPEM
}

func signWith(t *testing.T, privPEM []byte, method jwt.SigningMethod, claims *Claims) string {
	t.Helper()
	block, _ := pem.Decode(privPEM)
	pk, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)
	s, err := jwt.NewWithClaims(method, claims).SignedString(pk)
	require.NoError(t, err)
	return s
}

func TestTokenLifecycle(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, err := NewSigner(privPEM, pubPEM, "test-issuer")
	require.NoError(t, err)

	bidderID := uuid.New()

	token, err := signer.GenerateToken(bidderID, "broker@example.com", []string{"bids:write"})
	require.NoError(t, err)

	verifier, err := NewSignerFromPublicKey(pubPEM, "test-issuer")
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)

	got, err := claims.BidderID()
	require.NoError(t, err)
	assert.Equal(t, bidderID, got)
	assert.Equal(t, "broker@example.com", claims.Email)
	assert.Equal(t, []string{"bids:write"}, claims.Permissions)
}

func TestSecurityScenarios(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, err := NewSigner(privPEM, pubPEM, "test-issuer")
	require.NoError(t, err)

	validClaims := func(exp time.Time, issuer string) *Claims {
		return &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
		}}
	}

	t.Run("rejects expired token", func(t *testing.T) {
		token := signWith(t, privPEM, jwt.SigningMethodRS256, validClaims(time.Now().Add(-time.Hour), "test-issuer"))
		_, err := signer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects token without expiry", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String(), Issuer: "test-issuer"}}
		token := signWith(t, privPEM, jwt.SigningMethodRS256, claims)
		_, err := signer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects foreign issuer", func(t *testing.T) {
		token := signWith(t, privPEM, jwt.SigningMethodRS256, validClaims(time.Now().Add(time.Hour), "someone-else"))
		_, err := signer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects wrong key signature", func(t *testing.T) {
		attackerPriv, _ := generateTestKeys(t)
		token := signWith(t, attackerPriv, jwt.SigningMethodRS256, validClaims(time.Now().Add(time.Hour), "test-issuer"))
		_, err := signer.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects HMAC algorithm confusion", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(time.Now().Add(time.Hour), "test-issuer")).
			SignedString([]byte("some-secret"))
		require.NoError(t, err)

		_, err = signer.ValidateToken(token)
		assert.ErrorContains(t, err, "unexpected signing method: HS256")
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		_, err := signer.ValidateToken("this.is.garbage")
		assert.Error(t, err)
	})
}

func TestNewSignerValidation(t *testing.T) {
	_, pubPEM := generateTestKeys(t)

	t.Run("fails on invalid private key", func(t *testing.T) {
		_, err := NewSigner([]byte("not-a-pem"), pubPEM, "test-issuer")
		assert.Error(t, err)
	})

	t.Run("fails on invalid public key", func(t *testing.T) {
		_, err := NewSignerFromPublicKey([]byte("not-a-pem"), "test-issuer")
		assert.Error(t, err)
	})

	t.Run("validate-only signer cannot mint", func(t *testing.T) {
		verifier, err := NewSignerFromPublicKey(pubPEM, "test-issuer")
		require.NoError(t, err)
		_, err = verifier.GenerateToken(uuid.New(), "", nil)
		assert.Error(t, err)
	})
}
