// Package errors provides structured error handling for the fintrack-auth
// service. Errors carry a stable code from the 2FA error taxonomy, an
// HTTP status mapping, and support errors.Is/errors.As unwrapping so the
// transport layer can distinguish domain failures (wrong code, bad
// transition) from upstream outages.
package errors
