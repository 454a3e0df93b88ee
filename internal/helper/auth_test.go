package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopyard/auth-service/internal/dto"
)

func testAuth() Auth {
	return SetupAuth("access-secret", "refresh-secret", 24*time.Hour, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	auth := testAuth()
	claims := dto.TokenClaims{AccountID: 42, Email: "a@x.com", Role: "CUSTOMER"}

	token, err := auth.GenerateAccessToken(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := auth.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	auth := testAuth()
	claims := dto.TokenClaims{AccountID: 7, Email: "b@x.com", Role: "SELLER"}

	token, err := auth.GenerateRefreshToken(claims)
	require.NoError(t, err)

	got, err := auth.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestCrossSecretVerificationFails(t *testing.T) {
	auth := testAuth()
	claims := dto.TokenClaims{AccountID: 1, Email: "c@x.com", Role: "CUSTOMER"}

	refresh, err := auth.GenerateRefreshToken(claims)
	require.NoError(t, err)

	_, err = auth.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := auth.GenerateAccessToken(claims)
	require.NoError(t, err)

	_, err = auth.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenFails(t *testing.T) {
	auth := Auth{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     -time.Minute,
		RefreshTTL:    time.Hour,
	}
	claims := dto.TokenClaims{AccountID: 3, Email: "d@x.com", Role: "CUSTOMER"}

	token, err := auth.GenerateAccessToken(claims)
	require.NoError(t, err)

	_, err = auth.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// decode still works without signature/expiry checks
	got, err := auth.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestBearerPrefixAccepted(t *testing.T) {
	auth := testAuth()
	claims := dto.TokenClaims{AccountID: 9, Email: "e@x.com", Role: "ADMIN"}

	token, err := auth.GenerateAccessToken(claims)
	require.NoError(t, err)

	got, err := auth.VerifyAccessToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
}

func TestGenerateRejectsMissingInputs(t *testing.T) {
	auth := testAuth()

	_, err := auth.GenerateAccessToken(dto.TokenClaims{Email: "x@x.com"})
	assert.Error(t, err)

	_, err = auth.GenerateAccessToken(dto.TokenClaims{AccountID: 1})
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	auth := testAuth()

	hash, err := auth.HashPassword("Password1")
	require.NoError(t, err)
	require.NotEqual(t, "Password1", hash)

	assert.NoError(t, auth.VerifyPassword("Password1", hash))
	assert.Error(t, auth.VerifyPassword("password1", hash))
	assert.Error(t, auth.VerifyPassword("", hash))
}
