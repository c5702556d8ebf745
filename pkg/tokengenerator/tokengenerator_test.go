package tokengenerator

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	gen := NewJwtTokenGenerator("test-secret", "fintrack", "fintrack-api")

	tokenStr, expiry, err := gen.GenerateToken("user-123", 15*time.Minute, map[string]interface{}{"role": "user"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), expiry, 5*time.Second)

	token, err := gen.ParseToken(tokenStr)
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
	iss, err := claims.GetIssuer()
	require.NoError(t, err)
	assert.Equal(t, "fintrack", iss)
}

func TestParseToken_WrongSecret(t *testing.T) {
	gen := NewJwtTokenGenerator("test-secret", "fintrack", "fintrack-api")
	other := NewJwtTokenGenerator("other-secret", "fintrack", "fintrack-api")

	tokenStr, _, err := gen.GenerateToken("user-123", time.Minute, nil)
	require.NoError(t, err)

	_, err = other.ParseToken(tokenStr)
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	gen := NewJwtTokenGenerator("test-secret", "fintrack", "fintrack-api")

	tokenStr, _, err := gen.GenerateToken("user-123", -time.Minute, nil)
	require.NoError(t, err)

	_, err = gen.ParseToken(tokenStr)
	assert.Error(t, err)
}

func TestTokenService_GenerateTokens(t *testing.T) {
	gen := NewJwtTokenGenerator("test-secret", "fintrack", "fintrack-api")
	svc := NewTokenService(gen,
		WithAccessTokenExpiry(5*time.Minute),
		WithRefreshTokenExpiry(time.Hour),
	)

	tokens, err := svc.GenerateTokens("user-123", nil)
	require.NoError(t, err)
	require.Contains(t, tokens, ACCESS_TOKEN_NAME)
	require.Contains(t, tokens, REFRESH_TOKEN_NAME)
	assert.NotEqual(t, tokens[ACCESS_TOKEN_NAME].Token, tokens[REFRESH_TOKEN_NAME].Token)
	assert.True(t, tokens[REFRESH_TOKEN_NAME].Expiry.After(tokens[ACCESS_TOKEN_NAME].Expiry))
}
