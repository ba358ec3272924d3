package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

const (
	lockSQL   = `SELECT pg_advisory_xact_lock`
	updateSQL = `UPDATE "credentials" SET`
	insertSQL = `INSERT INTO "credentials"`
	selectSQL = `SELECT * FROM "credentials" WHERE is_valid = $1`
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}

	return NewRepository(db), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sql expectations: %v", err)
	}
}

var cookies = map[string]string{
	"a1":          "A",
	"webId":       "W",
	"gid":         "G",
	"web_session": "S",
}

func TestRepository_SaveOrder(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(lockSQL)).WithArgs(saveLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q(updateSQL)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(insertSQL)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	userID, err := repo.Save(context.Background(), cookies)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if userID != "AWGS" {
		t.Errorf("Save() user id = %q, want AWGS", userID)
	}
	expectationsMet(t, mock)
}

func TestRepository_SaveInsertFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(lockSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q(updateSQL)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(insertSQL)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), cookies)
	if !errors.Is(err, loginerrors.ErrStorage) {
		t.Fatalf("Save() error = %v, want ErrStorage", err)
	}
	// the invalidation is rolled back with the insert, so the prior record stays valid
	expectationsMet(t, mock)
}

func TestRepository_SaveInvalidateFailureSkipsInsert(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(lockSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q(updateSQL)).WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	if _, err := repo.Save(context.Background(), cookies); !errors.Is(err, loginerrors.ErrStorage) {
		t.Fatalf("Save() error = %v, want ErrStorage", err)
	}
	expectationsMet(t, mock)
}

func TestRepository_SaveLockFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(lockSQL)).WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	if _, err := repo.Save(context.Background(), cookies); !errors.Is(err, loginerrors.ErrStorage) {
		t.Fatalf("Save() error = %v, want ErrStorage", err)
	}
	expectationsMet(t, mock)
}

func TestRepository_InvalidateAllTwice(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(updateSQL)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(q(updateSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	n, err := repo.InvalidateAll(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("first InvalidateAll() = %d, %v, want 1", n, err)
	}
	n, err = repo.InvalidateAll(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second InvalidateAll() = %d, %v, want 0", n, err)
	}
	expectationsMet(t, mock)
}

func TestRepository_InvalidateAllError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(updateSQL)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := repo.InvalidateAll(context.Background()); !errors.Is(err, loginerrors.ErrStorage) {
		t.Fatalf("InvalidateAll() error = %v, want ErrStorage", err)
	}
	expectationsMet(t, mock)
}

func TestRepository_Current(t *testing.T) {
	columns := []string{"id", "user_id", "cookies", "is_valid", "created_at", "updated_at"}

	t.Run("valid record", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		mock.ExpectQuery(q(selectSQL)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(3, "AWGS", []byte(`{"a1":"A"}`), true, now, now))

		rec, err := repo.Current(context.Background())
		if err != nil {
			t.Fatalf("Current() error = %v", err)
		}
		if rec.ID != "3" || rec.UserID != "AWGS" || !rec.IsValid || rec.Cookies["a1"] != "A" {
			t.Errorf("Current() = %+v", rec)
		}
		expectationsMet(t, mock)
	})

	t.Run("no valid record", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(selectSQL)).WillReturnRows(sqlmock.NewRows(columns))

		if _, err := repo.Current(context.Background()); !errors.Is(err, loginerrors.ErrNoValidCredential) {
			t.Fatalf("Current() error = %v, want ErrNoValidCredential", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("query failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(q(selectSQL)).WillReturnError(errors.New("connection refused"))

		if _, err := repo.Current(context.Background()); !errors.Is(err, loginerrors.ErrStorage) {
			t.Fatalf("Current() error = %v, want ErrStorage", err)
		}
		expectationsMet(t, mock)
	})
}
