// Package sessions provides a PostgreSQL-backed repository for the
// single-use proof-of-verification sessions minted by pin and device checks.
package sessions

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

// PostgresRepository implements session storage over dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new session row.
func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, share_id, subject, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.ShareID, session.Subject, session.IssuedAt, session.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume deletes the session while returning it, so concurrent grant calls
// presenting the same token cannot both claim it. Expired rows are treated
// the same as absent ones.
func (r *PostgresRepository) Consume(ctx context.Context, id string) (*models.Session, error) {
	query := `
		DELETE FROM sessions
		WHERE id = $1 AND expires_at > $2
		RETURNING id, share_id, subject, issued_at, expires_at
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, id, time.Now()).Scan(
		&session.ID, &session.ShareID, &session.Subject, &session.IssuedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrSessionInvalidOrExpired
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

// DeleteExpired sweeps rows whose expiry has passed and reports how many
// were removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
