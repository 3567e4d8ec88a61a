package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

func newMockWeightProfileRepo(t *testing.T) (*weightProfileRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return &weightProfileRepo{db: sqlx.NewDb(db, "postgres"), timeout: 5 * time.Second}, mock
}

func TestWeightProfileRepo_Active_ReturnsNilOnNoRows(t *testing.T) {
	r, mock := newMockWeightProfileRepo(t)
	mock.ExpectQuery("SELECT id, name, weights, active, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "weights", "active", "created_at"}))

	got, err := r.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil with no active profile, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWeightProfileRepo_Active_UnmarshalsWeightsJSON(t *testing.T) {
	r, mock := newMockWeightProfileRepo(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "weights", "active", "created_at"}).
		AddRow("p1", "default", []byte(`{"ta":0.22,"onchain":0.18}`), true, now)
	mock.ExpectQuery("SELECT id, name, weights, active, created_at").WillReturnRows(rows)

	got, err := r.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got == nil || got.Weights[domain.LayerTA] != 0.22 {
		t.Fatalf("expected unmarshaled weights map, got %+v", got)
	}
}

func TestWeightProfileRepo_Activate_DeactivatesThenActivatesInOneTransaction(t *testing.T) {
	r, mock := newMockWeightProfileRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE weight_profiles SET active = false").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE weight_profiles SET active = true WHERE id = \\$1").
		WithArgs("p2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := r.Activate(context.Background(), "p2"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestWeightProfileRepo_Activate_RollsBackWhenIDNotFound(t *testing.T) {
	r, mock := newMockWeightProfileRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE weight_profiles SET active = false").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE weight_profiles SET active = true WHERE id = \\$1").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := r.Activate(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for an unknown profile id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
