// Package payments talks to the payment collaborator. The verification
// pipeline only needs one thing from it: given a capture confirmation
// (a PaymentMethod ID), prove the instrument exists and summarize it as a
// masked card for display.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentmethod"
)

// CardVerifier resolves a payment capture confirmation to a masked card
// summary.
type CardVerifier interface {
	MaskedCard(ctx context.Context, paymentMethodID string) (string, error)
}

// StripeVerifier implements CardVerifier against the Stripe API. The global
// stripe.Key is set once at startup.
type StripeVerifier struct{}

// MaskedCard retrieves the payment method and formats its masked summary.
func (StripeVerifier) MaskedCard(ctx context.Context, paymentMethodID string) (string, error) {
	pm, err := paymentmethod.Get(paymentMethodID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve payment method: %w", err)
	}
	if pm.Card == nil {
		return "", fmt.Errorf("payment method %s has no card details", paymentMethodID)
	}
	return fmt.Sprintf("%s •••• %s", pm.Card.Brand, pm.Card.Last4), nil
}

// Init sets the global Stripe API key.
func Init(secretKey string) error {
	if secretKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = secretKey
	return nil
}
