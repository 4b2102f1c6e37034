// Package quotas provides a PostgreSQL-backed repository for per-owner
// storage accounting with an atomic check-and-reserve.
package quotas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sharegate/internal/common"
	"sharegate/internal/dbx"
	"sharegate/internal/server/models"
)

// PostgresRepository implements quota storage over dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Ensure inserts the owner's quota row at the default ceiling if absent.
func (r *PostgresRepository) Ensure(ctx context.Context, ownerUID string, ceilingBytes int64) error {
	query := `
		INSERT INTO quotas (owner_uid, used_bytes, ceiling_bytes)
		VALUES ($1, 0, $2)
		ON CONFLICT (owner_uid) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, ownerUID, ceilingBytes); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the owner's quota row, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, ownerUID string) (*models.Quota, error) {
	query := `
		SELECT owner_uid, used_bytes, ceiling_bytes
		FROM quotas
		WHERE owner_uid = $1
	`
	quota := &models.Quota{}
	err := r.db.QueryRowContext(ctx, query, ownerUID).Scan(
		&quota.OwnerUID, &quota.UsedBytes, &quota.CeilingBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return quota, nil
}

// Reserve is the single check-and-reserve statement. The guard keeps two
// concurrent uploads by the same owner from jointly crossing the ceiling,
// which a read-then-write would permit.
func (r *PostgresRepository) Reserve(ctx context.Context, ownerUID string, n int64) error {
	query := `
		UPDATE quotas SET used_bytes = used_bytes + $2
		WHERE owner_uid = $1 AND used_bytes + $2 <= ceiling_bytes
	`
	res, err := r.db.ExecContext(ctx, query, ownerUID, n)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if rows == 0 {
		return common.ErrQuotaExceeded
	}
	return nil
}

// Release gives back a reservation, never dropping below zero.
func (r *PostgresRepository) Release(ctx context.Context, ownerUID string, n int64) error {
	query := `
		UPDATE quotas SET used_bytes = GREATEST(used_bytes - $2, 0)
		WHERE owner_uid = $1
	`
	if _, err := r.db.ExecContext(ctx, query, ownerUID, n); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
