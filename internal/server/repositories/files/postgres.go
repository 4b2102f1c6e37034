// Package files provides a PostgreSQL-backed repository for file metadata
// rows, including the transactional download-counter decrement.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sharegate/internal/common"
	"sharegate/internal/dbx"
	"sharegate/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new file row with a full download budget.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, owner_uid, display_name, size_bytes, content_type,
			storage_key, expires_at, max_downloads, remaining_downloads, share_mode, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := r.db.ExecContext(ctx, query,
		file.ID, file.OwnerUID, file.DisplayName, file.SizeBytes, file.ContentType,
		file.StorageKey, file.ExpiresAt, file.MaxDownloads, file.RemainingDownloads,
		file.Mode, file.Revoked); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the file row for the given id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.File, error) {
	query := `
		SELECT id, owner_uid, display_name, size_bytes, content_type, storage_key,
			created_at, expires_at, max_downloads, remaining_downloads, share_mode, revoked
		FROM files
		WHERE id = $1
	`
	file := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&file.ID, &file.OwnerUID, &file.DisplayName, &file.SizeBytes, &file.ContentType,
		&file.StorageKey, &file.CreatedAt, &file.ExpiresAt, &file.MaxDownloads,
		&file.RemainingDownloads, &file.Mode, &file.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// DecrementRemaining is the atomic gate on the shared counter. The guard in
// the WHERE clause means two concurrent grants at remaining_downloads=1
// cannot both match the row; the loser gets ErrDownloadLimitReached.
func (r *PostgresRepository) DecrementRemaining(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE files SET remaining_downloads = remaining_downloads - 1
		WHERE id = $1 AND remaining_downloads > 0
		RETURNING remaining_downloads
	`
	var remaining int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrDownloadLimitReached
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return remaining, nil
}

// SetRevoked flips the revoked flag; only the owning uid may do so.
func (r *PostgresRepository) SetRevoked(ctx context.Context, id string, ownerUID string, revoked bool) error {
	query := `
		UPDATE files SET revoked = $3
		WHERE id = $1 AND owner_uid = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, ownerUID, revoked)
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

// SetMode denormalizes the share mode onto the file row at share creation.
func (r *PostgresRepository) SetMode(ctx context.Context, id string, mode models.ShareMode) error {
	query := `update files set share_mode=$2 where id=$1`
	result, err := r.db.ExecContext(ctx, query, id, mode)
	if err != nil {
		return fmt.Errorf("failed to set share mode: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// Delete removes a file row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM files
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
