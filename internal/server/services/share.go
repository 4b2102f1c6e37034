package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"sharegate/internal/common"
	sc "sharegate/internal/server/config"
	"sharegate/internal/server/models"
	"sharegate/internal/server/repositories/repomanager"
	"sharegate/internal/server/webauthn"
)

var pinFormat = regexp.MustCompile(`^\d{6}$`)

// ShareInfo bundles the share row and the file it exposes, as returned to
// recipients before they attempt verification.
type ShareInfo struct {
	Share *models.Share
	File  *models.File
}

// ShareService implements the share registry and the per-mode verification
// state machine:
//
//   - public: always grants, no session.
//   - pin: bcrypt comparison against the stored hash; match mints a
//     single-use session.
//   - account: first authenticated subject wins a compare-and-set on the
//     bound subject; identity is re-checked per call afterwards.
//   - device: first registration binds the sole device credential under the
//     same first-wins discipline; afterwards a challenge-response signature
//     proof with a strictly increasing counter mints a single-use session.
type ShareService struct {
	db                *sql.DB
	repomanager       repomanager.RepositoryManager
	sessions          *SessionService
	challengeValidity time.Duration
}

// NewShareService constructs a ShareService using repositories, the session
// issuer, and server config.
func NewShareService(db *sql.DB, m repomanager.RepositoryManager, sessions *SessionService, cfg *sc.Config) *ShareService {
	return &ShareService{
		db:                db,
		repomanager:       m,
		sessions:          sessions,
		challengeValidity: cfg.ChallengeValidityDuration,
	}
}

// GetInfo resolves a share id to its share and file rows. Unknown ids,
// revoked shares, and revoked files all collapse to ErrInvalidOrExpiredLink
// so probing cannot distinguish them.
func (s *ShareService) GetInfo(ctx context.Context, shareID string) (*ShareInfo, error) {
	share, err := s.repomanager.Shares(s.db).Get(ctx, shareID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredLink
		}
		return nil, fmt.Errorf("error loading share: %w", err)
	}
	if !share.Valid {
		return nil, common.ErrInvalidOrExpiredLink
	}

	file, err := s.repomanager.Files(s.db).Get(ctx, share.FileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredLink
		}
		return nil, fmt.Errorf("error loading file: %w", err)
	}
	if file.Revoked {
		return nil, common.ErrInvalidOrExpiredLink
	}

	return &ShareInfo{Share: share, File: file}, nil
}

// Create makes a new share for a file the owner controls. The share id is a
// fresh uuid, never derived from the file id. For pin mode the 6-digit code
// is bcrypt-hashed before it is stored; the plaintext never persists.
func (s *ShareService) Create(ctx context.Context, ownerUID string, fileID string, mode models.ShareMode, pin string) (*models.Share, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown share mode %q", mode)
	}

	file, err := s.repomanager.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("error loading file: %w", err)
	}
	if file.OwnerUID != ownerUID {
		return nil, common.ErrorUnauthorized
	}

	share := &models.Share{
		ID:       uuid.NewString(),
		FileID:   fileID,
		OwnerUID: ownerUID,
		Mode:     mode,
		Valid:    true,
	}

	if mode == models.ShareModePin {
		if !pinFormat.MatchString(pin) {
			return nil, common.ErrPinMismatch
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, common.ErrorInternal
		}
		share.PinHash = sql.NullString{String: string(hash), Valid: true}
	}

	if err := s.repomanager.Shares(s.db).Create(ctx, share); err != nil {
		return nil, fmt.Errorf("error creating share: %w", err)
	}
	if err := s.repomanager.Files(s.db).SetMode(ctx, fileID, mode); err != nil {
		return nil, fmt.Errorf("error denormalizing mode: %w", err)
	}

	return share, nil
}

// Revoke invalidates the share and its file for all future verification and
// grant calls.
func (s *ShareService) Revoke(ctx context.Context, ownerUID string, shareID string) error {
	share, err := s.repomanager.Shares(s.db).Get(ctx, shareID)
	if err != nil {
		return fmt.Errorf("error loading share: %w", err)
	}
	if share.OwnerUID != ownerUID {
		return common.ErrorUnauthorized
	}

	if err := s.repomanager.Shares(s.db).Revoke(ctx, shareID, ownerUID); err != nil {
		return fmt.Errorf("error revoking share: %w", err)
	}
	return s.repomanager.Files(s.db).SetRevoked(ctx, share.FileID, ownerUID, true)
}

// BindAccount runs the account-mode first-claim race. The repository CAS
// guarantees exactly one winner among concurrent subjects; everyone else,
// and every later non-matching subject, gets ErrAlreadyBound. A subject that
// already holds the binding passes, so the call is idempotent for the winner.
func (s *ShareService) BindAccount(ctx context.Context, shareID string, subject string) error {
	if subject == "" {
		return common.ErrorUnauthorized
	}

	info, err := s.GetInfo(ctx, shareID)
	if err != nil {
		return err
	}
	if info.Share.Mode != models.ShareModeAccount {
		return common.ErrorUnauthorized
	}

	return s.repomanager.Shares(s.db).BindSubject(ctx, shareID, subject)
}

// VerifyPin compares the supplied 6-digit code against the stored bcrypt
// hash and mints a single-use session on match. The plaintext PIN is never
// compared directly. No lockout is applied; mismatches stay retryable.
func (s *ShareService) VerifyPin(ctx context.Context, shareID string, pin string) (string, error) {
	info, err := s.GetInfo(ctx, shareID)
	if err != nil {
		return "", err
	}
	if info.Share.Mode != models.ShareModePin || !info.Share.PinHash.Valid {
		return "", common.ErrorUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(info.Share.PinHash.String), []byte(pin)); err != nil {
		return "", common.ErrPinMismatch
	}

	return s.sessions.Issue(ctx, shareID, "")
}

// DeviceBeginRegister starts the binding ceremony for a device-mode share
// with no credential yet. The returned challenge must come back inside the
// attestation payload.
func (s *ShareService) DeviceBeginRegister(ctx context.Context, shareID string, subject string) ([]byte, error) {
	if subject == "" {
		return nil, common.ErrorUnauthorized
	}

	info, err := s.GetInfo(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if info.Share.Mode != models.ShareModeDevice {
		return nil, common.ErrorUnauthorized
	}

	// Cheap pre-check; the insert CAS at finish is authoritative.
	if _, err := s.repomanager.Credentials(s.db).GetByShare(ctx, shareID); err == nil {
		return nil, common.ErrAlreadyBound
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading credential: %w", err)
	}

	return s.issueChallenge(ctx, shareID, subject)
}

// DeviceFinishRegister completes the binding ceremony: it claims the pending
// challenge, validates the attestation, and inserts the credential under the
// first-wins discipline. Success makes this the sole bound device and mints
// a single-use session for the immediate download.
func (s *ShareService) DeviceFinishRegister(ctx context.Context, shareID string, subject string, label string, attestation []byte) (string, error) {
	if subject == "" {
		return "", common.ErrorUnauthorized
	}

	challenge, err := s.takeChallenge(ctx, shareID, subject)
	if err != nil {
		return "", err
	}

	att, err := webauthn.ParseAttestation(attestation, challenge)
	if err != nil {
		return "", err
	}

	cred := &models.DeviceCredential{
		ID:           uuid.NewString(),
		ShareID:      shareID,
		Label:        label,
		CredentialID: att.CredentialID,
		PublicKey:    att.PublicKey,
		BoundByUID:   subject,
	}
	if err := s.repomanager.Credentials(s.db).Create(ctx, cred); err != nil {
		return "", err
	}

	return s.sessions.Issue(ctx, shareID, cred.ID)
}

// DeviceBeginVerify starts a challenge-response round against the share's
// registered credential.
func (s *ShareService) DeviceBeginVerify(ctx context.Context, shareID string, subject string) ([]byte, error) {
	info, err := s.GetInfo(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if info.Share.Mode != models.ShareModeDevice {
		return nil, common.ErrorUnauthorized
	}

	if _, err := s.repomanager.Credentials(s.db).GetByShare(ctx, shareID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading credential: %w", err)
	}

	return s.issueChallenge(ctx, shareID, subject)
}

// DeviceFinishVerify checks the assertion signature against the stored
// public key and persists the asserted counter only if it strictly
// increased; a stalled counter means a cloned credential and is rejected
// with ErrReplayDetected. Success mints a single-use session.
func (s *ShareService) DeviceFinishVerify(ctx context.Context, shareID string, subject string, assertion []byte) (string, error) {
	challenge, err := s.takeChallenge(ctx, shareID, subject)
	if err != nil {
		return "", err
	}

	cred, err := s.repomanager.Credentials(s.db).GetByShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("error loading credential: %w", err)
	}

	counter, err := webauthn.VerifyAssertion(cred.PublicKey, cred.CredentialID, challenge, assertion)
	if err != nil {
		return "", err
	}
	if counter <= cred.SignatureCounter {
		return "", common.ErrReplayDetected
	}
	if err := s.repomanager.Credentials(s.db).AdvanceCounter(ctx, cred.ID, counter); err != nil {
		return "", err
	}

	return s.sessions.Issue(ctx, shareID, cred.ID)
}

func (s *ShareService) issueChallenge(ctx context.Context, shareID string, subject string) ([]byte, error) {
	value := common.GenerateRandByteArray(32)
	ch := &models.Challenge{
		ShareID:   shareID,
		Subject:   subject,
		Value:     value,
		ExpiresAt: time.Now().Add(s.challengeValidity),
	}
	if err := s.repomanager.Credentials(s.db).PutChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("error storing challenge: %w", err)
	}
	return value, nil
}

func (s *ShareService) takeChallenge(ctx context.Context, shareID string, subject string) ([]byte, error) {
	ch, err := s.repomanager.Credentials(s.db).TakeChallenge(ctx, shareID, subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error claiming challenge: %w", err)
	}
	return ch.Value, nil
}
