package totp

import (
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/drfintrack/fintrack-auth/pkg/errors"
)

// RFC 6238 defaults used by common authenticator apps (Google
// Authenticator, Authy). The ±1 step skew tolerates clock drift between
// the server and the authenticator device.
const (
	Period     = 30
	Digits     = otp.DigitsSix
	Skew       = 1
	SecretSize = 20 // bytes, 160-bit per RFC 4226 recommendation
)

// Key holds a freshly generated TOTP secret and its provisioning URI.
// The URL is the otpauth://totp/... form renderable as a QR code.
type Key struct {
	Secret string
	URL    string
}

// GenerateSecret creates a new random TOTP secret for the given account.
// The secret is base32-encoded (RFC 4648) with at least 160 bits of
// entropy. The returned URL embeds issuer, algorithm, digits and period
// so standard authenticator apps can provision from it directly.
func GenerateSecret(issuer, accountName string) (Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "issuer", issuer, "error", err)
		return Key{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate totp secret")
	}
	if key.Secret() == "" || key.URL() == "" {
		return Key{}, errors.New(errors.ErrCodeMalformedResponse, "totp key missing secret or provisioning url")
	}
	return Key{Secret: key.Secret(), URL: key.URL()}, nil
}

// GenerateCode computes the 6-digit code for the secret at the given time.
func GenerateCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at.UTC(), validateOpts())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to generate totp code")
	}
	return code, nil
}

// Verify reports whether code is valid for secret at the given time.
// Deterministic in at: identical (secret, code, at) always yields the
// same answer, so callers can test without real clocks. Codes from one
// step before or after at are accepted.
func Verify(secret, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at.UTC(), validateOpts())
	if err != nil {
		// Malformed input (wrong length, bad base32) is a failed
		// verification, not an operational error.
		slog.Debug("totp validation rejected input", "error", err)
		return false
	}
	return valid
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}
