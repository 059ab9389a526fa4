package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("user-1", "ARBITER", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ARBITER", claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestValidateAccessTokenErrors(t *testing.T) {
	token, err := GenerateAccessToken("user-1", "USER", "secret", time.Minute)
	require.NoError(t, err)
	_, err = ValidateAccessToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := GenerateAccessToken("user-1", "USER", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateAccessToken(expired, "secret")
	assert.ErrorIs(t, err, ErrTokenExpired)

	anonymous, err := GenerateAccessToken("", "USER", "secret", time.Minute)
	require.NoError(t, err)
	_, err = ValidateAccessToken(anonymous, "secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ValidateAccessToken("not-a-token", "secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
