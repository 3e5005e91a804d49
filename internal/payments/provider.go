// Package payments adapts the payment processor behind a narrow interface so
// services never import the PSP SDK directly.
package payments

import (
	"context"
	"time"
)

// LineItem describes a single checkout line. Amount is in the currency's
// minor unit (cents).
type LineItem struct {
	Name        string
	Description string
	SKU         string
	Quantity    int64
	Amount      int64
	Currency    string
}

// SessionRequest captures the payload required to create a hosted checkout
// session.
type SessionRequest struct {
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
	Items         []LineItem
}

// Session represents the PSP session returned to the client.
type Session struct {
	ID          string
	RedirectURL string
	IntentID    string
	ExpiresAt   time.Time
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
}
