package totp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	key, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)

	// 20 random bytes base32-encode to 32 characters
	assert.GreaterOrEqual(t, len(key.Secret), 32)
	assert.True(t, strings.HasPrefix(key.URL, "otpauth://totp/"))
	assert.Contains(t, key.URL, "issuer=fintrack")
	assert.Contains(t, key.URL, "algorithm=SHA1")
	assert.Contains(t, key.URL, "digits=6")
	assert.Contains(t, key.URL, "period=30")
	assert.Contains(t, key.URL, "secret="+key.Secret)
}

func TestGenerateSecret_Unique(t *testing.T) {
	k1, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)
	k2, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, k1.Secret, k2.Secret)
}

func TestVerify_CurrentCode(t *testing.T) {
	key, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	code, err := GenerateCode(key.Secret, at)
	require.NoError(t, err)
	require.Len(t, code, 6)

	assert.True(t, Verify(key.Secret, code, at))
}

func TestVerify_DriftWindow(t *testing.T) {
	key, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	code, err := GenerateCode(key.Secret, at)
	require.NoError(t, err)

	// One step of drift in either direction must validate
	assert.True(t, Verify(key.Secret, code, at.Add(-30*time.Second)))
	assert.True(t, Verify(key.Secret, code, at.Add(30*time.Second)))
}

func TestVerify_OutsideWindow(t *testing.T) {
	key, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	code, err := GenerateCode(key.Secret, at)
	require.NoError(t, err)

	assert.False(t, Verify(key.Secret, code, at.Add(301*time.Second)))
	assert.False(t, Verify(key.Secret, code, at.Add(10*time.Minute)))
	assert.False(t, Verify(key.Secret, code, at.Add(-10*time.Minute)))
}

func TestVerify_Deterministic(t *testing.T) {
	key, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	code, err := GenerateCode(key.Secret, at)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.True(t, Verify(key.Secret, code, at))
	}
}

func TestVerify_MalformedInput(t *testing.T) {
	key, err := GenerateSecret("fintrack", "alice@example.com")
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, Verify(key.Secret, "", now))
	assert.False(t, Verify(key.Secret, "12345", now))
	assert.False(t, Verify(key.Secret, "abcdef", now))
	assert.False(t, Verify("not-base32!!", "123456", now))
}
