// Package shares provides a PostgreSQL-backed repository for share rows,
// including the conditional update that settles account-mode binding races.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sharegate/internal/common"
	"sharegate/internal/dbx"
	"sharegate/internal/server/models"
)

// PostgresRepository implements share storage over dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new share row.
func (r *PostgresRepository) Create(ctx context.Context, share *models.Share) error {
	query := `
		INSERT INTO shares (id, file_id, owner_uid, share_mode, pin_hash, valid)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		share.ID, share.FileID, share.OwnerUID, share.Mode, share.PinHash, share.Valid); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the share row for the given id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Share, error) {
	query := `
		SELECT id, file_id, owner_uid, bound_subject, share_mode, pin_hash, valid, created_at
		FROM shares
		WHERE id = $1
	`
	share := &models.Share{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&share.ID, &share.FileID, &share.OwnerUID, &share.BoundSubject,
		&share.Mode, &share.PinHash, &share.Valid, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

// BindSubject sets bound_subject only while it is still null. The WHERE
// clause is the whole race arbiter: of two concurrent claimants exactly one
// update matches a row, the other sees zero rows affected and loses with
// ErrAlreadyBound. A subject that already holds the binding is not an error.
func (r *PostgresRepository) BindSubject(ctx context.Context, id string, subject string) error {
	query := `
		UPDATE shares SET bound_subject = $2
		WHERE id = $1 AND (bound_subject IS NULL OR bound_subject = $2)
	`
	res, err := r.db.ExecContext(ctx, query, id, subject)
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

// Revoke clears the valid flag; only the owning uid may revoke.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, ownerUID string) error {
	query := `
		UPDATE shares SET valid = false
		WHERE id = $1 AND owner_uid = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, ownerUID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
