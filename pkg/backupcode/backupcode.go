package backupcode

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
)

// Backup codes are the recovery fallback when the authenticator device is
// unavailable. Exactly SetSize codes are minted per enrollment, each
// single-use, formatted as two 5-character blocks: XXXXX-XXXXX.
const (
	SetSize  = 10
	blockLen = 5
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generate mints a fresh set of backup codes from a cryptographically
// secure random source.
func Generate() ([]string, error) {
	codes := make([]string, 0, SetSize)
	for i := 0; i < SetSize; i++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func generateCode() (string, error) {
	symbols, err := randomSymbols(2 * blockLen)
	if err != nil {
		return "", err
	}
	return symbols[:blockLen] + "-" + symbols[blockLen:], nil
}

// randomSymbols draws n symbols from the code alphabet using rejection
// sampling so every symbol is uniformly distributed.
func randomSymbols(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	buf := make([]byte, 1)
	for b.Len() < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		// 252 is the largest multiple of 36 below 256
		if buf[0] >= 252 {
			continue
		}
		b.WriteByte(alphabet[int(buf[0])%len(alphabet)])
	}
	return b.String(), nil
}

// Normalize canonicalizes user input for matching: uppercase with
// whitespace and dashes stripped. Display format keeps the dash.
func Normalize(input string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(input)) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Match compares a stored code against normalized input in constant time.
func Match(stored, normalizedInput string) bool {
	return subtle.ConstantTimeCompare([]byte(Normalize(stored)), []byte(normalizedInput)) == 1
}
