package credits

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGStoreReserve(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT credit_balance FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(3))
	mock.ExpectExec("UPDATE accounts SET credit_balance").
		WithArgs(2, "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_ledger").
		WithArgs(sqlmock.AnyArg(), "acct-1", "reserve", -1, 2, "tailoring-1", "pending", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := NewPGStore(database).Reserve(context.Background(), "acct-1", 1, "tailoring-1")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.ID == "" || res.Amount != 1 {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreReserveInsufficientRollsBack(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT credit_balance FROM accounts").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(0))
	mock.ExpectRollback()

	_, err = NewPGStore(database).Reserve(context.Background(), "acct-1", 1, "tailoring-1")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreReleaseRefunds(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id, amount, status, reference FROM credit_ledger").
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "status", "reference"}).AddRow("acct-1", -1, "pending", "tailoring-1"))
	mock.ExpectExec("UPDATE credit_ledger SET status").
		WithArgs("released", "res-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT credit_balance FROM accounts").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(2))
	mock.ExpectExec("UPDATE accounts SET credit_balance").
		WithArgs(3, "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_ledger").
		WithArgs(sqlmock.AnyArg(), "acct-1", "refund", 1, 3, "tailoring-1", nil, "res-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry, err := NewPGStore(database).Settle(context.Background(), "res-1", false)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if entry.Kind != KindRefund || entry.BalanceAfter != 3 {
		t.Fatalf("unexpected refund entry %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreSettleClosedReservation(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id, amount, status, reference FROM credit_ledger").
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "amount", "status", "reference"}).AddRow("acct-1", -1, "committed", nil))
	mock.ExpectRollback()

	if _, err := NewPGStore(database).Settle(context.Background(), "res-1", true); !errors.Is(err, ErrReservationClosed) {
		t.Fatalf("expected ErrReservationClosed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreDuplicatePurchase(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT credit_balance FROM accounts").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(0))
	mock.ExpectExec("UPDATE accounts SET credit_balance").
		WithArgs(5, "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_ledger").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err = NewPGStore(database).Adjust(context.Background(), "acct-1", 5, KindPurchase, "cs_test_1")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
