package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(secret, "senior", "senior", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, Claims{Username: "senior", Role: "senior"}, claims)
}

func TestExpiredToken(t *testing.T) {
	token, err := GenerateToken(secret, "junior", "junior", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(secret, token)
	require.Error(t, err)
	assert.True(t, IsExpired(err))
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(secret, "admin", "admin", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken([]byte("other"), token)
	require.Error(t, err)
	assert.False(t, IsExpired(err))
}

func TestTokenGarbage(t *testing.T) {
	_, err := ParseToken(secret, "not.a.token")
	assert.Error(t, err)
}
