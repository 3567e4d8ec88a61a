package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/confluence/internal/domain"
)

func newMockCandleRepo(t *testing.T) (*candleRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return &candleRepo{db: sqlx.NewDb(db, "postgres"), timeout: 5 * time.Second}, mock
}

func TestCandleRepo_Upsert_ExecutesOnConflictUpdate(t *testing.T) {
	r, mock := newMockCandleRepo(t)
	c := domain.Candle{Symbol: "BTC/USDT", Timeframe: domain.TF1h, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}

	mock.ExpectExec("INSERT INTO candles").
		WithArgs("BTC/USDT", "1h", c.Timestamp, 1.0, 2.0, 0.5, 1.5, 10.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Upsert(context.Background(), c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCandleRepo_Latest_ReversesDescendingRowsToChronological(t *testing.T) {
	r, mock := newMockCandleRepo(t)
	sym, tf := domain.SymbolId("BTC/USDT"), domain.TF1h
	asOf := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"symbol", "timeframe", "ts", "open", "high", "low", "close", "volume", "partition_key"}).
		AddRow("BTC/USDT", "1h", asOf.Add(-time.Hour), 1, 2, 0.5, 1.5, 10, 202601).
		AddRow("BTC/USDT", "1h", asOf.Add(-2*time.Hour), 1, 2, 0.5, 1.4, 10, 202601)

	mock.ExpectQuery("SELECT symbol, timeframe, ts, open, high, low, close, volume, partition_key").
		WithArgs(string(sym), string(tf), asOf, 2).
		WillReturnRows(rows)

	got, err := r.Latest(context.Background(), sym, tf, asOf, 2)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Errorf("expected chronological order, got %v then %v", got[0].Timestamp, got[1].Timestamp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCandleRepo_UpsertBatch_RollsBackOnMidBatchError(t *testing.T) {
	r, mock := newMockCandleRepo(t)
	cs := []domain.Candle{
		{Symbol: "BTC/USDT", Timeframe: domain.TF1h, Timestamp: time.Now()},
		{Symbol: "BTC/USDT", Timeframe: domain.TF1h, Timestamp: time.Now().Add(time.Hour)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO candles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO candles").WillReturnError(sqlErr("constraint violation"))
	mock.ExpectRollback()

	n, err := r.UpsertBatch(context.Background(), cs)
	if err == nil {
		t.Fatal("expected an error from the failing second insert")
	}
	if n != 1 {
		t.Errorf("expected the count of successfully executed inserts before the failure (1), got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

type sqlErrString string

func (e sqlErrString) Error() string { return string(e) }

func sqlErr(msg string) error { return sqlErrString(msg) }
