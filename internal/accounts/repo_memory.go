package accounts

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, account Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[account.Email]; ok {
		return ErrEmailTaken
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.byID[account.ID] = account
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) UpdateName(ctx context.Context, id, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	account.Name = name
	account.UpdatedAt = time.Now().UTC()
	r.byID[id] = account
	return nil
}
