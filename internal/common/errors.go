// Package common defines shared constants and sentinel errors used across
// the storage, sync and crypto layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationFailed is returned when an AEAD open fails: tag
	// mismatch, truncated ciphertext, or a key-version mismatch. It means
	// corruption or tampering, never a condition to retry silently.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrKeyLocked is returned when a crypto operation runs without a
	// derived session key (before unlock or after lock).
	ErrKeyLocked = errors.New("session key locked")

	// ErrStorageFull is returned when the durable store rejects a write
	// because the device is out of space or quota. It must reach the
	// caller of the mutating operation.
	ErrStorageFull = errors.New("storage full")

	// Sync outcome classification.
	ErrRetryableNetwork = errors.New("retryable network failure")
	ErrTerminal         = errors.New("terminal failure")
	ErrVersionConflict  = errors.New("version conflict")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
