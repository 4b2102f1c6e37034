// Package notifications provides a PostgreSQL-backed repository for
// download delivery notifications. Sending is handled elsewhere.
package notifications

import (
	"context"
	"fmt"

	"sharegate/internal/dbx"
	"sharegate/internal/server/models"
)

// PostgresRepository implements notification storage over dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an undelivered notification row.
func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, type, to_email, share_id, file_id, delivered)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		n.ID, n.Type, n.ToEmail, n.ShareID, n.FileID, n.Delivered); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
