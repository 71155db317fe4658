package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestIssueAndValidateToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret: "super-secret",
		Issuer: "craftfolio",
		TTL:    24 * time.Hour,
		Clock:  now,
	})
	require.NoError(t, err)

	token, err := svc.IssueToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)

	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "craftfolio", claims.Issuer)
	require.True(t, claims.IssuedAt.Time.Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(24*time.Hour)))
}

func TestIssueTokenRequiresUserID(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	_, err = svc.IssueToken(0)
	require.Error(t, err)
}

func TestValidateTokenInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{
		Secret: "issuer-secret",
		TTL:    time.Minute,
		Clock:  now,
	})
	require.NoError(t, err)

	token, err := issuer.IssueToken(7)
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{
		Secret: "other-secret",
		TTL:    time.Minute,
		Clock:  now,
	})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestValidateTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret: "secret",
		TTL:    time.Minute,
		Clock:  now,
	})
	require.NoError(t, err)

	token, err := svc.IssueToken(7)
	require.NoError(t, err)

	// Logout does not revoke anything: the token remains valid right up to
	// its natural expiry.
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, uint(7), claims.UserID)

	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "someone-else", Clock: now})
	require.NoError(t, err)

	token, err := issuer.IssueToken(7)
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "craftfolio", Clock: now})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}
