package accounts

import (
	"context"
	"database/sql"
	"errors"

	"cv-tailor/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const selectAccount = `
SELECT id, email, name, password_hash, plan, credit_balance, created_at, updated_at
FROM accounts`

func (r *PGRepo) Create(ctx context.Context, account Account) error {
	const query = `
INSERT INTO accounts (id, email, name, password_hash, plan, credit_balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		account.ID,
		account.Email,
		nullableString(account.Name),
		nullableString(account.PasswordHash),
		account.Plan,
	)
	if err != nil && db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Account, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx, selectAccount+`
WHERE id = $1
LIMIT 1`, id))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx, selectAccount+`
WHERE lower(email) = lower($1)
LIMIT 1`, email))
}

func (r *PGRepo) UpdateName(ctx context.Context, id, name string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE accounts SET name = $1, updated_at = now() WHERE id = $2`, nullableString(name), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) scanOne(row *sql.Row) (Account, error) {
	var (
		account      Account
		name         sql.NullString
		passwordHash sql.NullString
	)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&name,
		&passwordHash,
		&account.Plan,
		&account.CreditBalance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.Name = name.String
	account.PasswordHash = passwordHash.String
	return account, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
