// Package repomanager wires the per-aggregate repositories to a database
// handle. Factories take a dbx.DBTX so services can pass either the root
// *sql.DB or an open transaction.
package repomanager

import (
	"context"
	"database/sql"

	"sharegate/internal/dbx"
	"sharegate/internal/server/repositories/credentials"
	"sharegate/internal/server/repositories/files"
	"sharegate/internal/server/repositories/notifications"
	"sharegate/internal/server/repositories/quotas"
	"sharegate/internal/server/repositories/sessions"
	"sharegate/internal/server/repositories/shares"
)

// RepositoryManager produces repositories bound to the given DBTX and runs
// schema migrations.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Shares(db dbx.DBTX) shares.Repository
	Files(db dbx.DBTX) files.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Quotas(db dbx.DBTX) quotas.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
