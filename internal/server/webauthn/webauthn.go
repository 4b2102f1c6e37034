// Package webauthn implements the possession-proof ceremony for device-mode
// shares over opaque attestation/assertion payloads. Only ES256 (ECDSA
// P-256) platform-authenticator credentials are accepted; payloads follow
// the standard WebAuthn authenticatorData layout.
package webauthn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"sharegate/internal/common"
)

// Attestation is the registration payload produced by the client after a
// platform-authenticator create() call.
type Attestation struct {
	CredentialID   []byte `json:"credentialId"`
	PublicKey      []byte `json:"publicKey"` // PKIX/DER-encoded ES256 key
	ClientDataJSON []byte `json:"clientDataJSON"`
}

// Assertion is the challenge-response payload produced by a get() call
// against a previously registered credential.
type Assertion struct {
	CredentialID      []byte `json:"credentialId"`
	AuthenticatorData []byte `json:"authenticatorData"`
	ClientDataJSON    []byte `json:"clientDataJSON"`
	Signature         []byte `json:"signature"` // ASN.1 DER ECDSA signature
}

// clientData is the subset of the WebAuthn clientDataJSON we validate.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"` // base64url, no padding
}

const (
	ceremonyCreate = "webauthn.create"
	ceremonyGet    = "webauthn.get"

	// authenticatorData: 32-byte rpIdHash, 1 flags byte, 4-byte big-endian
	// signature counter.
	authDataMinLen  = 37
	counterOffset   = 33
	flagsOffset     = 32
	flagUserPresent = 0x01
)

var errMalformed = errors.New("malformed webauthn payload")

// ParseAttestation decodes and validates a registration payload against the
// issued challenge, returning the credential id and public key to persist.
func ParseAttestation(raw []byte, challenge []byte) (*Attestation, error) {
	att := &Attestation{}
	if err := json.Unmarshal(raw, att); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(att.CredentialID) == 0 || len(att.PublicKey) == 0 {
		return nil, errMalformed
	}

	if _, err := parseES256PublicKey(att.PublicKey); err != nil {
		return nil, err
	}

	if err := checkClientData(att.ClientDataJSON, ceremonyCreate, challenge); err != nil {
		return nil, err
	}

	return att, nil
}

// VerifyAssertion checks an assertion against the stored public key and the
// issued challenge. On success it returns the asserted signature counter;
// callers must still confirm the counter strictly increased before trusting
// the credential.
func VerifyAssertion(publicKeyDER []byte, credentialID []byte, challenge []byte, raw []byte) (uint32, error) {
	asrt := &Assertion{}
	if err := json.Unmarshal(raw, asrt); err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(asrt.AuthenticatorData) < authDataMinLen {
		return 0, errMalformed
	}
	if !bytes.Equal(asrt.CredentialID, credentialID) {
		return 0, common.ErrorUnauthorized
	}

	if err := checkClientData(asrt.ClientDataJSON, ceremonyGet, challenge); err != nil {
		return 0, err
	}

	if asrt.AuthenticatorData[flagsOffset]&flagUserPresent == 0 {
		return 0, common.ErrNoPlatformAuthenticator
	}

	pub, err := parseES256PublicKey(publicKeyDER)
	if err != nil {
		return 0, err
	}

	// Signature covers authenticatorData || SHA-256(clientDataJSON).
	clientDataHash := sha256.Sum256(asrt.ClientDataJSON)
	signed := sha256.Sum256(append(asrt.AuthenticatorData, clientDataHash[:]...))
	if !ecdsa.VerifyASN1(pub, signed[:], asrt.Signature) {
		return 0, common.ErrorUnauthorized
	}

	counter := binary.BigEndian.Uint32(asrt.AuthenticatorData[counterOffset : counterOffset+4])
	return counter, nil
}

func parseES256PublicKey(der []byte) (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, common.ErrWebAuthnUnsupported
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, common.ErrWebAuthnUnsupported
	}
	return pub, nil
}

func checkClientData(raw []byte, wantType string, challenge []byte) error {
	cd := &clientData{}
	if err := json.Unmarshal(raw, cd); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if cd.Type != wantType {
		return errMalformed
	}
	got, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if !bytes.Equal(got, challenge) {
		return common.ErrorUnauthorized
	}
	return nil
}
