package tokengenerator

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValue holds a generated token and its expiry
type TokenValue struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// TokenService issues the access/refresh token pair that makes up a
// session.
type TokenService struct {
	generator          TokenGenerator
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

// TokenServiceOption is a function that configures a TokenService
type TokenServiceOption func(*TokenService)

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		ts.accessTokenExpiry = expiry
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration
func WithRefreshTokenExpiry(expiry time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		ts.refreshTokenExpiry = expiry
	}
}

// NewTokenService creates a new TokenService
func NewTokenService(generator TokenGenerator, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		generator:          generator,
		accessTokenExpiry:  DefaultAccessTokenExpiry,
		refreshTokenExpiry: DefaultRefreshTokenExpiry,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// GenerateTokens issues the access and refresh tokens for a subject
func (ts *TokenService) GenerateTokens(subject string, extraClaims map[string]interface{}) (map[string]TokenValue, error) {
	tokens := make(map[string]TokenValue, 2)

	accessToken, accessExpiry, err := ts.generator.GenerateToken(subject, ts.accessTokenExpiry, extraClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	tokens[ACCESS_TOKEN_NAME] = TokenValue{Token: accessToken, Expiry: accessExpiry}

	refreshToken, refreshExpiry, err := ts.generator.GenerateToken(subject, ts.refreshTokenExpiry, extraClaims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	tokens[REFRESH_TOKEN_NAME] = TokenValue{Token: refreshToken, Expiry: refreshExpiry}

	return tokens, nil
}

// ParseToken parses and validates a token string
func (ts *TokenService) ParseToken(tokenStr string) (*jwt.Token, error) {
	return ts.generator.ParseToken(tokenStr)
}
