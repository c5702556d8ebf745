package config

import "time"

// TwofaConfig contains 2FA behavior settings.
type TwofaConfig struct {
	// Issuer is the label shown by authenticator apps, embedded in the
	// otpauth provisioning URI
	Issuer string

	// ChallengeTTL bounds how long a login challenge stays consumable
	ChallengeTTL time.Duration

	// AttemptCapacity is the burst of code verification attempts allowed
	// per factor before rate limiting kicks in
	AttemptCapacity int

	// AttemptRefillRate is verification attempts regained per second
	AttemptRefillRate float64
}

// DefaultTwofaConfig returns a TwofaConfig with sensible defaults
func DefaultTwofaConfig() TwofaConfig {
	return TwofaConfig{
		Issuer:       "drFinTrack",
		ChallengeTTL: 5 * time.Minute,
		// 5 attempts, then roughly one more every 30 seconds
		AttemptCapacity:   5,
		AttemptRefillRate: 0.033,
	}
}

// NewTwofaConfigFromEnv loads TwofaConfig from environment variables:
//   - TWOFA_ISSUER: provisioning URI issuer (default: "drFinTrack")
//   - TWOFA_CHALLENGE_TTL: challenge lifetime (default: "5m")
//   - TWOFA_ATTEMPT_CAPACITY: verification attempt burst per factor (default: 5)
//   - TWOFA_ATTEMPT_REFILL_RATE: attempts regained per second (default: 0.033)
func NewTwofaConfigFromEnv() TwofaConfig {
	return TwofaConfig{
		Issuer:            GetEnvOrDefault("TWOFA_ISSUER", "drFinTrack"),
		ChallengeTTL:      GetEnvDuration("TWOFA_CHALLENGE_TTL", 5*time.Minute),
		AttemptCapacity:   GetEnvInt("TWOFA_ATTEMPT_CAPACITY", 5),
		AttemptRefillRate: GetEnvFloat64("TWOFA_ATTEMPT_REFILL_RATE", 0.033),
	}
}

// RateLimitConfig contains rate limiting settings for the public login
// endpoints.
type RateLimitConfig struct {
	LoginEnabled    bool
	LoginCapacity   int
	LoginRefillRate float64 // tokens per second
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		// Login: 10 per minute per IP (brute force protection)
		LoginEnabled:    true,
		LoginCapacity:   10,
		LoginRefillRate: 0.167,
	}
}

// NewRateLimitConfigFromEnv loads RateLimitConfig from environment variables:
//   - RATELIMIT_LOGIN_ENABLED: enable login endpoint rate limiting (default: true)
//   - RATELIMIT_LOGIN_CAPACITY: login bucket capacity per IP (default: 10)
//   - RATELIMIT_LOGIN_REFILL_RATE: refill rate in tokens/sec (default: 0.167)
func NewRateLimitConfigFromEnv() RateLimitConfig {
	return RateLimitConfig{
		LoginEnabled:    GetEnvBool("RATELIMIT_LOGIN_ENABLED", true),
		LoginCapacity:   GetEnvInt("RATELIMIT_LOGIN_CAPACITY", 10),
		LoginRefillRate: GetEnvFloat64("RATELIMIT_LOGIN_REFILL_RATE", 0.167),
	}
}
