package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cv-tailor/internal/shared/metrics"
	"cv-tailor/internal/shared/telemetry"
)

type store interface {
	Adjust(ctx context.Context, accountID string, delta int, kind Kind, reference string) (Entry, error)
	Reserve(ctx context.Context, accountID string, amount int, reference string) (Reservation, error)
	Settle(ctx context.Context, reservationID string, commit bool) (Entry, error)
	Balance(ctx context.Context, accountID string) (int, error)
	Entries(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

// AccountResolver maps an email or account id to an account id.
type AccountResolver interface {
	ResolveAccountID(ctx context.Context, identifier string) (string, error)
}

const defaultEntriesLimit = 50

// Service owns every balance change.
type Service struct {
	store    store
	Resolver AccountResolver
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// AdjustCredits applies delta to the balance and records one ledger entry.
func (s *Service) AdjustCredits(ctx context.Context, accountID string, delta int, kind Kind, reference string) (Entry, error) {
	if strings.TrimSpace(accountID) == "" {
		return Entry{}, ErrAccountNotFound
	}
	if delta == 0 {
		return Entry{}, ErrInvalidAmount
	}
	if kind == "" {
		kind = KindAdjust
	}
	entry, err := s.store.Adjust(ctx, accountID, delta, kind, strings.TrimSpace(reference))
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			metrics.IncCreditsRejected()
		}
		return Entry{}, err
	}
	if kind == KindPurchase {
		metrics.AddCreditsPurchased(delta)
	}
	telemetry.Info("credits.adjust", map[string]any{
		"account_id":    accountID,
		"kind":          string(kind),
		"amount":        delta,
		"balance_after": entry.BalanceAfter,
		"reference":     entry.Reference,
	})
	return entry, nil
}

// AdjustByEmailOrID resolves identifier and applies an admin adjustment.
func (s *Service) AdjustByEmailOrID(ctx context.Context, identifier string, delta int, note string) (Entry, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Entry{}, ErrAccountNotFound
	}
	accountID := identifier
	if s.Resolver != nil {
		resolved, err := s.Resolver.ResolveAccountID(ctx, identifier)
		if err != nil {
			return Entry{}, fmt.Errorf("resolve %q: %w", identifier, err)
		}
		accountID = resolved
	}
	return s.AdjustCredits(ctx, accountID, delta, KindAdjust, note)
}

// Reserve debits amount up front as a pending reservation.
func (s *Service) Reserve(ctx context.Context, accountID string, amount int, reference string) (Reservation, error) {
	if amount <= 0 {
		return Reservation{}, ErrInvalidAmount
	}
	res, err := s.store.Reserve(ctx, accountID, amount, reference)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			metrics.IncCreditsRejected()
			telemetry.Warn("credits.rejected", map[string]any{
				"account_id": accountID,
				"amount":     amount,
				"reference":  reference,
			})
		}
		return Reservation{}, err
	}
	metrics.AddCreditsReserved(amount)
	telemetry.Info("credits.reserve", map[string]any{
		"account_id":     accountID,
		"reservation_id": res.ID,
		"amount":         amount,
		"reference":      reference,
	})
	return res, nil
}

// Commit finalizes a pending reservation.
func (s *Service) Commit(ctx context.Context, reservationID string) error {
	entry, err := s.store.Settle(ctx, reservationID, true)
	if err != nil {
		return err
	}
	telemetry.Info("credits.commit", map[string]any{
		"account_id":     entry.AccountID,
		"reservation_id": reservationID,
	})
	return nil
}

// Release refunds a pending reservation.
func (s *Service) Release(ctx context.Context, reservationID string) error {
	entry, err := s.store.Settle(ctx, reservationID, false)
	if err != nil {
		return err
	}
	metrics.AddCreditsRefunded(entry.Amount)
	telemetry.Info("credits.refund", map[string]any{
		"account_id":     entry.AccountID,
		"reservation_id": reservationID,
		"amount":         entry.Amount,
		"balance_after":  entry.BalanceAfter,
	})
	return nil
}

// Balance returns the current balance.
func (s *Service) Balance(ctx context.Context, accountID string) (int, error) {
	return s.store.Balance(ctx, accountID)
}

// Entries returns the most recent ledger entries, newest first.
func (s *Service) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultEntriesLimit
	}
	return s.store.Entries(ctx, accountID, limit)
}
