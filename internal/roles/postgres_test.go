package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreAssignUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	granted := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "app_name", "role_name", "is_active",
		"granted_by", "granted_at", "revoked_by", "revoked_at",
	}).AddRow("as-1", "u1", "app1", "editor", true, "admin@porta.test", granted, nil, nil)

	mock.ExpectQuery("(?s)insert into role_assignments.*on conflict \\(user_id, app_name\\) where is_active.*do update set role_name=excluded.role_name").
		WithArgs(sqlmock.AnyArg(), "u1", "app1", "editor", "admin@porta.test").
		WillReturnRows(rows)

	store := NewPGStore(db)
	a, err := store.Assign(context.Background(), "u1", "APP1", "Editor", "admin@porta.test")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if a.RoleName != "editor" || !a.Active {
		t.Fatalf("unexpected assignment: %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreRevokeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("(?s)update role_assignments.*set is_active=false").
		WithArgs("admin@porta.test", "u1", "app1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.Revoke(context.Background(), "u1", "app1", "admin@porta.test"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestPGStoreAssignRejectsUnknownRole(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	if _, err := store.Assign(context.Background(), "u1", "app1", "root", "a"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
