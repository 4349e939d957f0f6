package credits

import (
	"errors"
	"time"
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindGrant    Kind = "grant"
	KindPurchase Kind = "purchase"
	KindAdjust   Kind = "adjust"
	KindReserve  Kind = "reserve"
	KindRefund   Kind = "refund"
)

// Status tracks the lifecycle of a reservation entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
)

var (
	// ErrInsufficientCredits indicates the balance cannot cover the requested debit.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrAccountNotFound indicates no account matched the id or email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrReservationNotFound indicates an unknown reservation id.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrReservationClosed indicates the reservation was already committed or released.
	ErrReservationClosed = errors.New("reservation already settled")
	// ErrDuplicateReference indicates a purchase or grant reference was already credited.
	ErrDuplicateReference = errors.New("credit reference already applied")
	// ErrInvalidAmount rejects zero adjustments and non-positive reservations.
	ErrInvalidAmount = errors.New("invalid credit amount")
)

// Entry is one row of the credit ledger. Amount is signed.
type Entry struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	Kind          Kind      `json:"kind"`
	Amount        int       `json:"amount"`
	BalanceAfter  int       `json:"balanceAfter"`
	Reference     string    `json:"reference,omitempty"`
	Status        Status    `json:"status,omitempty"`
	ReservationID string    `json:"reservationId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Reservation is a pending debit tied to one tailoring.
type Reservation struct {
	ID        string
	AccountID string
	Amount    int
	Reference string
}

func uniqueReference(kind Kind) bool {
	return kind == KindPurchase || kind == KindGrant
}
