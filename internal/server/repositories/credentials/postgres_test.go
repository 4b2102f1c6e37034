package credentials

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

func sampleCredential() *models.DeviceCredential {
	return &models.DeviceCredential{
		ID:           "c1",
		ShareID:      "sh1",
		Label:        "My Laptop",
		CredentialID: []byte("cred-id"),
		PublicKey:    []byte("pubkey-der"),
		BoundByUID:   "alice",
	}
}

func TestCreate_FirstBindWins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+device_credentials\b.*ON\s+CONFLICT\s*\(share_id\)\s+DO\s+NOTHING\s*$`

	mock.ExpectExec(q).
		WithArgs("c1", "sh1", "My Laptop", []byte("cred-id"), []byte("pubkey-der"), int64(0), "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), sampleCredential()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_SecondBindRejected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+device_credentials`).
		WithArgs("c1", "sh1", "My Laptop", []byte("cred-id"), []byte("pubkey-der"), int64(0), "alice").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleCredential())
	if !errors.Is(err, common.ErrAlreadyBound) {
		t.Fatalf("want ErrAlreadyBound, got %v", err)
	}
}

func TestAdvanceCounter_StrictIncrease(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+device_credentials\s+SET\s+signature_counter\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+signature_counter\s*<\s*\$2\s*$`

	mock.ExpectExec(q).
		WithArgs("c1", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AdvanceCounter(context.Background(), "c1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdvanceCounter_StalledCounterIsReplay(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+device_credentials\s+SET\s+signature_counter`).
		WithArgs("c1", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AdvanceCounter(context.Background(), "c1", 5)
	if !errors.Is(err, common.ErrReplayDetected) {
		t.Fatalf("want ErrReplayDetected, got %v", err)
	}
}

func TestTakeChallenge_ExpiredOrMissing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE\s+FROM\s+webauthn_challenges`).
		WithArgs("sh1", "alice", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.TakeChallenge(context.Background(), "sh1", "alice")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestTakeChallenge_ReturnsPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"share_id", "subject", "challenge", "expires_at"}).
		AddRow("sh1", "alice", []byte("nonce"), time.Now().Add(time.Minute))

	mock.ExpectQuery(`DELETE\s+FROM\s+webauthn_challenges`).
		WithArgs("sh1", "alice", sqlmock.AnyArg()).
		WillReturnRows(rows)

	ch, err := repo.TakeChallenge(context.Background(), "sh1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(ch.Value) != "nonce" {
		t.Fatalf("unexpected challenge value: %q", ch.Value)
	}
}
