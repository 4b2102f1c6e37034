// Package models defines server-side data models persisted in the database.
package models

import (
	"database/sql"
	"time"
)

// ShareMode selects which verification variant gates a share. It is fixed at
// share creation.
type ShareMode string

const (
	ShareModePublic  ShareMode = "public"
	ShareModePin     ShareMode = "pin"
	ShareModeDevice  ShareMode = "device"
	ShareModeAccount ShareMode = "account"
)

// Valid reports whether m is one of the four known modes.
func (m ShareMode) Valid() bool {
	switch m {
	case ShareModePublic, ShareModePin, ShareModeDevice, ShareModeAccount:
		return true
	}
	return false
}

// Share describes a share link gating access to a file. The share id is an
// opaque uuid, never derivable from the file id.
type Share struct {
	// ID is the opaque share identifier appearing in share URLs.
	ID string
	// FileID links the share to the file it exposes.
	FileID string
	// OwnerUID is the uid of the file owner who created the share.
	OwnerUID string
	// BoundSubject is set exactly once by the first successful account-mode
	// claim and is immutable afterwards. Null until bound.
	BoundSubject sql.NullString
	// Mode selects the verification variant (public/pin/device/account).
	Mode ShareMode
	// PinHash holds the bcrypt hash of the 6-digit code for pin mode.
	// The plaintext PIN is never stored or compared directly.
	PinHash sql.NullString
	// Valid is cleared when the owner revokes the share.
	Valid     bool
	CreatedAt time.Time
}
