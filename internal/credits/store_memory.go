package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore keeps balances for any account id it is given; unknown ids start at zero.
type memoryStore struct {
	mu       sync.Mutex
	balances map[string]int
	entries  []Entry
	byID     map[string]int
	refs     map[string]struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		balances: make(map[string]int),
		byID:     make(map[string]int),
		refs:     make(map[string]struct{}),
	}
}

func (s *memoryStore) Adjust(ctx context.Context, accountID string, delta int, kind Kind, reference string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	refKey := string(kind) + ":" + reference
	if uniqueReference(kind) && reference != "" {
		if _, ok := s.refs[refKey]; ok {
			return Entry{}, ErrDuplicateReference
		}
	}
	next := s.balances[accountID] + delta
	if next < 0 {
		return Entry{}, ErrInsufficientCredits
	}
	s.balances[accountID] = next
	if uniqueReference(kind) && reference != "" {
		s.refs[refKey] = struct{}{}
	}
	return s.append(Entry{
		AccountID:    accountID,
		Kind:         kind,
		Amount:       delta,
		BalanceAfter: next,
		Reference:    reference,
	}), nil
}

func (s *memoryStore) Reserve(ctx context.Context, accountID string, amount int, reference string) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balances[accountID]
	if balance < amount {
		return Reservation{}, ErrInsufficientCredits
	}
	s.balances[accountID] = balance - amount
	entry := s.append(Entry{
		AccountID:    accountID,
		Kind:         KindReserve,
		Amount:       -amount,
		BalanceAfter: balance - amount,
		Reference:    reference,
		Status:       StatusPending,
	})
	return Reservation{ID: entry.ID, AccountID: accountID, Amount: amount, Reference: reference}, nil
}

func (s *memoryStore) Settle(ctx context.Context, reservationID string, commit bool) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[reservationID]
	if !ok || s.entries[idx].Kind != KindReserve {
		return Entry{}, ErrReservationNotFound
	}
	res := s.entries[idx]
	if res.Status != StatusPending {
		return Entry{}, ErrReservationClosed
	}
	if commit {
		s.entries[idx].Status = StatusCommitted
		return s.entries[idx], nil
	}
	s.entries[idx].Status = StatusReleased
	refund := -res.Amount
	next := s.balances[res.AccountID] + refund
	s.balances[res.AccountID] = next
	return s.append(Entry{
		AccountID:     res.AccountID,
		Kind:          KindRefund,
		Amount:        refund,
		BalanceAfter:  next,
		Reference:     res.Reference,
		ReservationID: reservationID,
	}), nil
}

func (s *memoryStore) Balance(ctx context.Context, accountID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[accountID], nil
}

func (s *memoryStore) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].AccountID == accountID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// append must be called with mu held.
func (s *memoryStore) append(entry Entry) Entry {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	s.byID[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return entry
}
