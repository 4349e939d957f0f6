package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cv-tailor/internal/shared/storage/db"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credit store. Balances live on accounts.credit_balance.
func NewPGStore(database *sql.DB) *pgStore {
	return &pgStore{DB: database}
}

const insertEntrySQL = `
INSERT INTO credit_ledger (id, account_id, kind, amount, balance_after, reference, status, reservation_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (s *pgStore) Adjust(ctx context.Context, accountID string, delta int, kind Kind, reference string) (Entry, error) {
	var entry Entry
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		balance, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		next := balance + delta
		if next < 0 {
			return ErrInsufficientCredits
		}
		if err := updateBalance(ctx, tx, accountID, next); err != nil {
			return err
		}
		entry = Entry{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Kind:         kind,
			Amount:       delta,
			BalanceAfter: next,
			Reference:    reference,
			CreatedAt:    time.Now().UTC(),
		}
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *pgStore) Reserve(ctx context.Context, accountID string, amount int, reference string) (Reservation, error) {
	var res Reservation
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		balance, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientCredits
		}
		next := balance - amount
		if err := updateBalance(ctx, tx, accountID, next); err != nil {
			return err
		}
		entry := Entry{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Kind:         KindReserve,
			Amount:       -amount,
			BalanceAfter: next,
			Reference:    reference,
			Status:       StatusPending,
			CreatedAt:    time.Now().UTC(),
		}
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}
		res = Reservation{ID: entry.ID, AccountID: accountID, Amount: amount, Reference: reference}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func (s *pgStore) Settle(ctx context.Context, reservationID string, commit bool) (Entry, error) {
	var out Entry
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var (
			accountID string
			amount    int
			status    sql.NullString
			reference sql.NullString
		)
		err := tx.QueryRowContext(ctx, `
SELECT account_id, amount, status, reference FROM credit_ledger
WHERE id = $1 AND kind = 'reserve' FOR UPDATE`, reservationID).Scan(&accountID, &amount, &status, &reference)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReservationNotFound
			}
			return err
		}
		if Status(status.String) != StatusPending {
			return ErrReservationClosed
		}

		next := StatusCommitted
		if !commit {
			next = StatusReleased
		}
		if _, err := tx.ExecContext(ctx, `UPDATE credit_ledger SET status = $1 WHERE id = $2`, string(next), reservationID); err != nil {
			return err
		}
		if commit {
			out = Entry{ID: reservationID, AccountID: accountID, Kind: KindReserve, Amount: amount, Status: StatusCommitted, Reference: reference.String}
			return nil
		}

		balance, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		refund := -amount
		if err := updateBalance(ctx, tx, accountID, balance+refund); err != nil {
			return err
		}
		out = Entry{
			ID:            uuid.NewString(),
			AccountID:     accountID,
			Kind:          KindRefund,
			Amount:        refund,
			BalanceAfter:  balance + refund,
			Reference:     reference.String,
			ReservationID: reservationID,
			CreatedAt:     time.Now().UTC(),
		}
		return insertEntry(ctx, tx, out)
	})
	if err != nil {
		return Entry{}, err
	}
	return out, nil
}

func (s *pgStore) Balance(ctx context.Context, accountID string) (int, error) {
	var balance int
	err := s.DB.QueryRowContext(ctx, `SELECT credit_balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (s *pgStore) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, account_id, kind, amount, balance_after, reference, status, reservation_id, created_at
FROM credit_ledger
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e             Entry
			kind          string
			reference     sql.NullString
			status        sql.NullString
			reservationID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &kind, &e.Amount, &e.BalanceAfter, &reference, &status, &reservationID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Reference = reference.String
		e.Status = Status(status.String)
		e.ReservationID = reservationID.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func lockBalance(ctx context.Context, tx *sql.Tx, accountID string) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx, `SELECT credit_balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return balance, nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, accountID string, balance int) error {
	_, err := tx.ExecContext(ctx, `UPDATE accounts SET credit_balance = $1, updated_at = now() WHERE id = $2`, balance, accountID)
	return err
}

func insertEntry(ctx context.Context, tx *sql.Tx, e Entry) error {
	_, err := tx.ExecContext(ctx, insertEntrySQL,
		e.ID,
		e.AccountID,
		string(e.Kind),
		e.Amount,
		e.BalanceAfter,
		nullableString(e.Reference),
		nullableString(string(e.Status)),
		nullableString(e.ReservationID),
		e.CreatedAt,
	)
	if err != nil && db.IsUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
