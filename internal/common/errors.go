// Package common defines shared constants and sentinel errors used across
// client and server layers of ClipSync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConfig marks a fatal configuration problem. The process must not
	// start when it is returned during startup.
	ErrConfig = errors.New("configuration error")

	// ErrDecryptionFailed is returned when an envelope fails authentication
	// or is malformed. It is scoped to a single clip reveal attempt and is
	// never fatal.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrAuthExpired means the access token was rejected twice: once before
	// and once after a refresh attempt. The caller must re-authenticate.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrTransportUnavailable means a write could not be sent right now and
	// was queued instead. Callers treat it as "queued", not as a failure.
	ErrTransportUnavailable = errors.New("transport unavailable, write queued")

	// ErrOutboxExhausted marks an outbox entry that spent its whole retry
	// budget. It stays visible in the failed list until the owner acts on it.
	ErrOutboxExhausted = errors.New("outbox retry budget exhausted")

	// ErrOwnershipRejected is the server-side authorization failure for a
	// clip write whose owner or team does not match the session.
	ErrOwnershipRejected = errors.New("ownership rejected")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
