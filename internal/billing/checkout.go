package billing

import (
	"context"
	"errors"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// Session is a hosted checkout page for a credit purchase.
type Session struct {
	ID      string `json:"sessionId"`
	URL     string `json:"url"`
	Credits int    `json:"credits"`
	Email   string `json:"email,omitempty"`
}

// SessionRequest describes the purchase to create a checkout for.
type SessionRequest struct {
	AccountID  string
	Email      string
	Credits    int
	UnitCents  int64
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Checkout creates hosted checkout sessions.
type Checkout interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// StripeCheckout creates Stripe Checkout sessions in payment mode.
type StripeCheckout struct {
	client session.Client
}

// NewStripeCheckout returns a checkout bound to the given secret key.
func NewStripeCheckout(secretKey string) *StripeCheckout {
	return &StripeCheckout{client: session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}}
}

func (s *StripeCheckout) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if s.client.Key == "" {
		return Session{}, errors.New("stripe secret key not configured")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.AccountID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("CV tailoring credits"),
				},
				UnitAmount: stripe.Int64(req.UnitCents),
			},
			Quantity: stripe.Int64(int64(req.Credits)),
		}},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata(metadataAccountID, req.AccountID)
	params.AddMetadata(metadataCredits, strconv.Itoa(req.Credits))

	cs, err := s.client.New(params)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: cs.ID, URL: cs.URL, Credits: req.Credits, Email: req.Email}, nil
}
