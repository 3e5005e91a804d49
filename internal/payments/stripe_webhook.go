package payments

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// EventVerifier authenticates a raw webhook delivery and decodes the event.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

// StripeEventVerifier verifies deliveries using the endpoint signing secret.
type StripeEventVerifier struct {
	secret string
}

// NewStripeEventVerifier constructs a verifier for the given signing secret.
func NewStripeEventVerifier(secret string) (*StripeEventVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("stripe: webhook signing secret is required")
	}
	return &StripeEventVerifier{secret: secret}, nil
}

// VerifyEvent implements the EventVerifier interface.
func (v *StripeEventVerifier) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, v.secret)
}
