package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+version,\s*payload,\s*nonce,\s*key_version,\s*deleted,\s*updated_at\s+FROM\s+records`

	rows := sqlmock.NewRows([]string{"version", "payload", "nonce", "key_version", "deleted", "updated_at"}).
		AddRow(int64(4), []byte("ct"), []byte("n"), 1, false, time.Now())

	mock.ExpectQuery(q).WithArgs("u1", "pain_entries", "r1").WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), "u1", "pain_entries", "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Version != 4 || string(rec.Payload) != "ct" || rec.Deleted {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("u1", "pain_entries", "missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1", "pain_entries", "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected common.ErrNotFound, got %v", err)
	}
}

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+records\b.*ON\s+CONFLICT\s+\(user_id,\s*tbl,\s*record_id\)`

	mock.ExpectExec(q).
		WithArgs("u1", "pain_entries", "r1", int64(2), []byte("ct"), []byte("n"), 1, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.SyncRecord{
		UserID:     "u1",
		Table:      "pain_entries",
		RecordID:   "r1",
		Version:    2,
		Payload:    []byte("ct"),
		Nonce:      []byte("n"),
		KeyVersion: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT`).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), &models.SyncRecord{UserID: "u1", Table: "t", RecordID: "r"})
	if err == nil {
		t.Fatalf("expected wrapped db error, got nil")
	}
}
