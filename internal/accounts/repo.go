package accounts

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid account input")
)

type Repo interface {
	Create(ctx context.Context, account Account) error
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	UpdateName(ctx context.Context, id, name string) error
}
