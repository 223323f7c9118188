package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	h1, err := HashPassword("s3cret", 4)
	require.NoError(t, err)
	h2, err := HashPassword("s3cret", 4)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "hashes must be salted")
	assert.True(t, VerifyPassword(h1, "s3cret"))
	assert.False(t, VerifyPassword(h1, "S3cret"))
}

func TestNewStaffToken_CarriesEventClaim(t *testing.T) {
	tok, err := NewStaffToken("k", 9, 42, 5)
	require.NoError(t, err)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("k"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "STAFF", claims["role"])
	assert.EqualValues(t, 42, claims["event_id"])
	assert.EqualValues(t, 9, claims["sub"])
}

func TestRefreshToken_HashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(1)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
}
