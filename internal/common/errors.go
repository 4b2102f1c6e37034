// Package common defines shared constants and sentinel errors used across
// the share verification and download-issuance flows. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Share lookup and lifecycle.
	ErrInvalidOrExpiredLink = errors.New("invalid or expired link")
	ErrShareExpired         = errors.New("share expired")
	ErrDownloadLimitReached = errors.New("download limit reached")

	// First-claim binding. Terminal for the losing subject or device.
	ErrAlreadyBound = errors.New("already bound to another account")

	// PIN verification. Retryable with a corrected code.
	ErrPinMismatch = errors.New("pin mismatch")

	// Device credential verification.
	ErrWebAuthnUnsupported     = errors.New("webauthn not supported")
	ErrNoPlatformAuthenticator = errors.New("no platform authenticator")
	// ErrReplayDetected signals a signature counter that failed to strictly
	// increase: the credential may have been cloned. Terminal for that path.
	ErrReplayDetected = errors.New("replay detected")

	// Session lifecycle (single-use proof tokens).
	ErrSessionInvalidOrExpired = errors.New("session invalid or expired")
	ErrInvalidToken            = errors.New("invalid token")

	// Storage accounting.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTransientStore marks backend failures the caller may retry with
	// backoff. All other kinds are stable outcomes.
	ErrTransientStore = errors.New("transient store error")
)
