package verificationcodes

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestDeleteForEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+verification_codes\s+WHERE\s+email\s*=\s*\$1\s+AND\s+purpose\s*=\s*\$2$`

	mock.ExpectExec(q).
		WithArgs("alice@example.com", "login").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeleteForEmail(context.Background(), "alice@example.com", "login"); err != nil {
		t.Fatalf("DeleteForEmail error: %v", err)
	}
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+verification_codes\s*\(email,\s*code,\s*purpose,\s*expires_at\)`

	expires := time.Now().Add(10 * time.Minute)
	mock.ExpectExec(q).
		WithArgs("alice@example.com", "123456", "login", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.VerificationCode{
		Email:     "alice@example.com",
		Code:      "123456",
		Purpose:   "login",
		ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestConsume_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+verification_codes\s+SET\s+used_at\s*=\s*now\(\)\s+WHERE\s+email\s*=\s*\$1\s+AND\s+code\s*=\s*\$2\s+AND\s+used_at\s+IS\s+NULL\s+AND\s+expires_at\s*>\s*now\(\)`

	mock.ExpectExec(q).
		WithArgs("alice@example.com", "123456").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Consume(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("Consume error: %v", err)
	}
}

func TestConsume_AlreadyUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+verification_codes\s+SET\s+used_at`).
		WithArgs("alice@example.com", "123456").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Consume(context.Background(), "alice@example.com", "123456")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestHasRecentlyUsed_True(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+1\s+FROM\s+verification_codes\s+WHERE\s+email\s*=\s*\$1\s+AND\s+used_at\s+IS\s+NOT\s+NULL\s+AND\s+used_at\s*>\s*\$2`

	mock.ExpectQuery(q).
		WithArgs("alice@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	ok, err := repo.HasRecentlyUsed(context.Background(), "alice@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("HasRecentlyUsed error: %v", err)
	}
	if !ok {
		t.Fatalf("want true")
	}
}

func TestHasRecentlyUsed_False(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+1\s+FROM\s+verification_codes`).
		WithArgs("alice@example.com", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.HasRecentlyUsed(context.Background(), "alice@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("HasRecentlyUsed error: %v", err)
	}
	if ok {
		t.Fatalf("want false")
	}
}
