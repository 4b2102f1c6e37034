package files

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"sharegate/internal/common"
	"sharegate/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestDecrementRemaining_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+files\s+SET\s+remaining_downloads\s*=\s*remaining_downloads\s*-\s*1\s+WHERE\s+id\s*=\s*\$1\s+AND\s+remaining_downloads\s*>\s*0\s+RETURNING\s+remaining_downloads\s*$`

	mock.ExpectQuery(q).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_downloads"}).AddRow(2))

	remaining, err := repo.DecrementRemaining(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("want remaining 2, got %d", remaining)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDecrementRemaining_Exhausted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+files\s+SET\s+remaining_downloads`).
		WithArgs("f1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.DecrementRemaining(context.Background(), "f1")
	if !errors.Is(err, common.ErrDownloadLimitReached) {
		t.Fatalf("want ErrDownloadLimitReached, got %v", err)
	}
}

func TestGet_ScansRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "owner_uid", "display_name", "size_bytes", "content_type",
		"storage_key", "created_at", "expires_at", "max_downloads", "remaining_downloads", "share_mode", "revoked"}).
		AddRow("f1", "owner", "report.pdf", int64(1024), "application/pdf",
			"shares/2026/1/1/abc", time.Now(), time.Now().Add(time.Hour), 10, 7, "device", false)

	mock.ExpectQuery(`SELECT\s+id,\s+owner_uid`).
		WithArgs("f1").
		WillReturnRows(rows)

	file, err := repo.Get(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.RemainingDownloads != 7 || file.MaxDownloads != 10 {
		t.Fatalf("unexpected counters: %d/%d", file.RemainingDownloads, file.MaxDownloads)
	}
	if file.Mode != models.ShareModeDevice {
		t.Fatalf("want device mode, got %v", file.Mode)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id,\s+owner_uid`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestSetMode_WrongRowCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`update\s+files\s+set\s+share_mode`).
		WithArgs("f1", "pin").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetMode(context.Background(), "f1", models.ShareModePin); err == nil {
		t.Fatalf("expected error for zero rows affected")
	}
}
