package models

import "time"

// DeviceCredential is a device-bound public-key credential registered during
// the device-mode binding ceremony. A share holds at most one credential
// ("first bind wins"); later registrations are rejected even under race.
type DeviceCredential struct {
	ID      string
	ShareID string
	// Label is the human-readable device name supplied at registration.
	Label string
	// CredentialID is the authenticator-assigned credential identifier.
	CredentialID []byte
	// PublicKey is the DER-encoded (PKIX) ES256 public key used to verify
	// assertion signatures.
	PublicKey []byte
	// SignatureCounter must strictly increase on every successful assertion;
	// a stall or regression signals a cloned credential.
	SignatureCounter uint32
	BoundByUID       string
	CreatedAt        time.Time
}

// Challenge is the pending-ceremony state for a device registration or
// verification round trip. It is single-use and short-lived.
type Challenge struct {
	ShareID   string
	Subject   string
	Value     []byte
	ExpiresAt time.Time
}
