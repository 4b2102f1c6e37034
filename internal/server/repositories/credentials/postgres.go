// Package credentials provides a PostgreSQL-backed repository for
// device-bound public-key credentials and their ceremony challenges.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sharegate/internal/common"
	"sharegate/internal/dbx"
	"sharegate/internal/server/models"
)

// PostgresRepository implements credential storage over dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the credential. The unique index on share_id arbitrates
// concurrent registrations: ON CONFLICT DO NOTHING turns the loser into a
// zero-row insert, reported as ErrAlreadyBound.
func (r *PostgresRepository) Create(ctx context.Context, cred *models.DeviceCredential) error {
	query := `
		INSERT INTO device_credentials (id, share_id, label, credential_id, public_key, signature_counter, bound_by_uid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (share_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		cred.ID, cred.ShareID, cred.Label, cred.CredentialID, cred.PublicKey,
		int64(cred.SignatureCounter), cred.BoundByUID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyBound
	}
	return nil
}

// GetByShare returns the single credential bound to shareID, or
// common.ErrorNotFound when the share has no device yet.
func (r *PostgresRepository) GetByShare(ctx context.Context, shareID string) (*models.DeviceCredential, error) {
	query := `
		SELECT id, share_id, label, credential_id, public_key, signature_counter, bound_by_uid, created_at
		FROM device_credentials
		WHERE share_id = $1
	`
	cred := &models.DeviceCredential{}
	var counter int64
	err := r.db.QueryRowContext(ctx, query, shareID).Scan(
		&cred.ID, &cred.ShareID, &cred.Label, &cred.CredentialID, &cred.PublicKey,
		&counter, &cred.BoundByUID, &cred.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	cred.SignatureCounter = uint32(counter)
	return cred, nil
}

// AdvanceCounter stores the asserted counter only when it strictly exceeds
// the persisted one. Zero rows affected means the counter did not move
// forward, which is treated as evidence of a cloned credential.
func (r *PostgresRepository) AdvanceCounter(ctx context.Context, id string, counter uint32) error {
	query := `
		UPDATE device_credentials SET signature_counter = $2
		WHERE id = $1 AND signature_counter < $2
	`
	res, err := r.db.ExecContext(ctx, query, id, int64(counter))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrReplayDetected
	}
	return nil
}

// PutChallenge upserts the pending challenge for (share, subject). A repeated
// ceremony start replaces the previous challenge.
func (r *PostgresRepository) PutChallenge(ctx context.Context, ch *models.Challenge) error {
	query := `
		INSERT INTO webauthn_challenges (share_id, subject, challenge, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (share_id, subject)
		DO UPDATE SET challenge = EXCLUDED.challenge, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, ch.ShareID, ch.Subject, ch.Value, ch.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// TakeChallenge claims the pending challenge in one statement so a challenge
// can only be answered once.
func (r *PostgresRepository) TakeChallenge(ctx context.Context, shareID string, subject string) (*models.Challenge, error) {
	query := `
		DELETE FROM webauthn_challenges
		WHERE share_id = $1 AND subject = $2 AND expires_at > $3
		RETURNING share_id, subject, challenge, expires_at
	`
	ch := &models.Challenge{}
	err := r.db.QueryRowContext(ctx, query, shareID, subject, time.Now()).Scan(
		&ch.ShareID, &ch.Subject, &ch.Value, &ch.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ch, nil
}
