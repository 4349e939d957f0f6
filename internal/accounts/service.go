package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"cv-tailor/internal/credits"
	"cv-tailor/internal/shared/telemetry"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

type Service struct {
	Repo          Repo
	Credits       *credits.Service
	SignupCredits int
	BcryptCost    int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(repo Repo, creditSvc *credits.Service, signupCredits, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		Repo:          repo,
		Credits:       creditSvc,
		SignupCredits: signupCredits,
		BcryptCost:    bcryptCost,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account and grants the signup credits.
func (s *Service) Register(ctx context.Context, email, password, name string) (Account, error) {
	if s == nil || s.Repo == nil {
		return Account{}, errors.New("accounts service not configured")
	}
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return Account{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return Account{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return Account{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	return s.create(ctx, Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Plan:         PlanFree,
	})
}

// Authenticate checks a password without revealing whether the email exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	if s == nil || s.Repo == nil {
		return Account{}, errors.New("accounts service not configured")
	}
	account, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if account.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return s.withBalance(ctx, account)
}

// UpsertExternal returns the account for an externally verified email, creating it on first sign-in.
func (s *Service) UpsertExternal(ctx context.Context, email, name string) (Account, error) {
	if s == nil || s.Repo == nil {
		return Account{}, errors.New("accounts service not configured")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	account, err := s.Repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if account.Name == "" && strings.TrimSpace(name) != "" {
			account.Name = strings.TrimSpace(name)
			if err := s.Repo.UpdateName(ctx, account.ID, account.Name); err != nil {
				return Account{}, err
			}
		}
		return s.withBalance(ctx, account)
	case errors.Is(err, ErrNotFound):
		account, err = s.create(ctx, Account{
			ID:    uuid.NewString(),
			Email: email,
			Name:  strings.TrimSpace(name),
			Plan:  PlanFree,
		})
		if errors.Is(err, ErrEmailTaken) {
			// Lost a race with a concurrent first sign-in.
			account, err = s.Repo.GetByEmail(ctx, email)
			if err != nil {
				return Account{}, err
			}
			return s.withBalance(ctx, account)
		}
		return account, err
	default:
		return Account{}, err
	}
}

// Get returns the account with its current credit balance.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	if s == nil || s.Repo == nil {
		return Account{}, errors.New("accounts service not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Account{}, ErrNotFound
	}
	account, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return s.withBalance(ctx, account)
}

// ResolveAccountID accepts an email address or an account id.
func (s *Service) ResolveAccountID(ctx context.Context, identifier string) (string, error) {
	var (
		account Account
		err     error
	)
	if strings.Contains(identifier, "@") {
		account, err = s.Repo.GetByEmail(ctx, NormalizeEmail(identifier))
	} else {
		if _, perr := uuid.Parse(identifier); perr != nil {
			return "", credits.ErrAccountNotFound
		}
		account, err = s.Repo.GetByID(ctx, identifier)
	}
	if errors.Is(err, ErrNotFound) {
		return "", credits.ErrAccountNotFound
	}
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

func (s *Service) create(ctx context.Context, account Account) (Account, error) {
	if err := s.Repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	if s.Credits != nil && s.SignupCredits > 0 {
		entry, err := s.Credits.AdjustCredits(ctx, account.ID, s.SignupCredits, credits.KindGrant, "signup:"+account.ID)
		if err != nil && !errors.Is(err, credits.ErrDuplicateReference) {
			return Account{}, fmt.Errorf("grant signup credits: %w", err)
		}
		account.CreditBalance = entry.BalanceAfter
	}
	telemetry.Info("account.created", map[string]any{
		"account_id": account.ID,
		"external":   account.PasswordHash == "",
	})
	return account, nil
}

func (s *Service) withBalance(ctx context.Context, account Account) (Account, error) {
	if s.Credits == nil {
		return account, nil
	}
	balance, err := s.Credits.Balance(ctx, account.ID)
	if err != nil {
		return Account{}, err
	}
	account.CreditBalance = balance
	return account, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cv-tailor-dummy-password"), s.BcryptCost)
	})
	return s.dummyHash
}
