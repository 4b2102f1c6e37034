package repomanager

import (
	"context"
	"database/sql"

	"sharegate/internal/dbx"
	"sharegate/internal/server/migrations"
	"sharegate/internal/server/repositories/credentials"
	"sharegate/internal/server/repositories/files"
	"sharegate/internal/server/repositories/notifications"
	"sharegate/internal/server/repositories/quotas"
	"sharegate/internal/server/repositories/sessions"
	"sharegate/internal/server/repositories/shares"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Seam for tests.
var gooseUpContext = goose.UpContext

// PostgresRepositoryManager is the production RepositoryManager.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager opens the database by DSN, applies migrations,
// and returns the manager together with the root handle.
func NewPostgresRepositoryManager(ctx context.Context, dsn string) (*PostgresRepositoryManager, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, nil, err
	}

	return m, db, nil
}

// RunMigrations applies the embedded goose migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}

func (m *PostgresRepositoryManager) Shares(db dbx.DBTX) shares.Repository {
	return shares.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Quotas(db dbx.DBTX) quotas.Repository {
	return quotas.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Notifications(db dbx.DBTX) notifications.Repository {
	return notifications.NewPostgresRepository(db)
}
