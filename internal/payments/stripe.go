package payments

import (
	"context"
	"os"
	"sync"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// StripeDeposits wraps stripe-go PaymentIntent hold/capture/cancel for the
// security deposit. Rental payment itself is owned by the billing backend;
// this only mirrors the deposit lifecycle onto booking transitions.
type StripeDeposits struct {
	mu      sync.Mutex
	intents map[string]string // booking id -> payment intent id
}

// NewStripeDeposits initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeDeposits() *StripeDeposits {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeDeposits{intents: make(map[string]string)}
}

// Hold creates a PaymentIntent with capture_method=manual when a booking is
// confirmed. It returns the PaymentIntent ID on success.
func (s *StripeDeposits) Hold(ctx context.Context, b *models.Booking) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(b.TotalPrice),
		Currency: stripe.String(b.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.intents[b.ID] = pi.ID
	s.mu.Unlock()
	return pi.ID, nil
}

// Capture finalizes the held deposit once the return handover completed.
func (s *StripeDeposits) Capture(ctx context.Context, bookingID string) error {
	id, ok := s.intent(bookingID)
	if !ok {
		return nil
	}
	_, err := paymentintent.Capture(id, nil)
	return err
}

// Release cancels the hold when the booking is cancelled.
func (s *StripeDeposits) Release(ctx context.Context, bookingID string) error {
	id, ok := s.intent(bookingID)
	if !ok {
		return nil
	}
	_, err := paymentintent.Cancel(id, nil)
	return err
}

func (s *StripeDeposits) intent(bookingID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.intents[bookingID]
	return id, ok
}
