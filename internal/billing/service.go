package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"cv-tailor/internal/credits"
	"cv-tailor/internal/shared/telemetry"
)

const (
	metadataAccountID = "account_id"
	metadataCredits   = "credits"

	// MaxCreditsPerCheckout bounds a single purchase.
	MaxCreditsPerCheckout = 500
)

var (
	ErrInvalidInput     = errors.New("invalid checkout request")
	ErrNotConfigured    = errors.New("billing not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Options holds the checkout pricing and redirect configuration.
type Options struct {
	WebhookSecret string
	UnitCents     int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type Service struct {
	Checkout Checkout
	Credits  *credits.Service
	Opts     Options
}

func NewService(checkout Checkout, creditSvc *credits.Service, opts Options) *Service {
	return &Service{Checkout: checkout, Credits: creditSvc, Opts: opts}
}

// StartCheckout creates a hosted checkout for n credits.
func (s *Service) StartCheckout(ctx context.Context, accountID, email string, n int) (Session, error) {
	if s == nil || s.Checkout == nil {
		return Session{}, ErrNotConfigured
	}
	if n <= 0 || n > MaxCreditsPerCheckout {
		return Session{}, fmt.Errorf("%w: credits must be between 1 and %d", ErrInvalidInput, MaxCreditsPerCheckout)
	}
	sess, err := s.Checkout.CreateSession(ctx, SessionRequest{
		AccountID:  accountID,
		Email:      email,
		Credits:    n,
		UnitCents:  s.Opts.UnitCents,
		Currency:   s.Opts.Currency,
		SuccessURL: s.Opts.SuccessURL,
		CancelURL:  s.Opts.CancelURL,
	})
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	telemetry.Info("billing.checkout.created", map[string]any{
		"account_id": accountID,
		"session_id": sess.ID,
		"credits":    n,
	})
	return sess, nil
}

// HandleWebhook verifies a Stripe event and credits completed, paid checkouts.
// Replayed events for the same session are accepted without crediting twice.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s == nil || s.Opts.WebhookSecret == "" {
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.Opts.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Type != "checkout.session.completed" {
		return nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		telemetry.Info("billing.webhook.unpaid", map[string]any{"session_id": cs.ID})
		return nil
	}

	accountID := cs.Metadata[metadataAccountID]
	if accountID == "" {
		accountID = cs.ClientReferenceID
	}
	n, err := strconv.Atoi(cs.Metadata[metadataCredits])
	if err != nil || n <= 0 || accountID == "" {
		return fmt.Errorf("%w: session %s has no credit metadata", ErrInvalidInput, cs.ID)
	}

	_, err = s.Credits.AdjustCredits(ctx, accountID, n, credits.KindPurchase, cs.ID)
	if errors.Is(err, credits.ErrDuplicateReference) {
		telemetry.Info("billing.webhook.duplicate", map[string]any{"session_id": cs.ID})
		return nil
	}
	return err
}
