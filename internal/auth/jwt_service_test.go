package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)
	id := uuid.New()

	issued, err := svc.GenerateAccessToken(id, "someone@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), issued.ExpiresAt, 2*time.Second)

	claims, err := svc.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", claims.Email)
	assert.Equal(t, issued.ID, claims.ID)

	parsed, err := claims.IdentityID()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestJWTService_RejectsOtherSecret(t *testing.T) {
	issued, err := NewJWTService("a", 0, 0).GenerateAccessToken(uuid.New(), "x@example.com")
	require.NoError(t, err)

	_, err = NewJWTService("b", 0, 0).ValidateToken(issued.Token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute, time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	issued, err := svc.GenerateAccessToken(uuid.New(), "x@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(issued.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "x@example.com"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("test-secret", 0, 0).ValidateToken(signed)
	assert.Error(t, err)
}

func TestJWTService_ExtractTokenID(t *testing.T) {
	svc := NewJWTService("test-secret", 0, 0)
	issued, err := svc.GenerateRefreshToken(uuid.New(), "x@example.com")
	require.NoError(t, err)

	id, err := svc.ExtractTokenID(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, id)
	assert.Equal(t, RefreshTokenExpiry, svc.RefreshTTL())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.True(t, ComparePassword(hash, "password123"))
	assert.False(t, ComparePassword(hash, "password124"))
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken()
	require.NoError(t, err)
	b, err := GenerateOpaqueToken()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
