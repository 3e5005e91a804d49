// Package services contains the application services that orchestrate the
// commerce platform and the payment processor.
package services

import (
	"context"
	"net/url"

	"github.com/splat-labs/storefront/internal/commerce"
	"github.com/splat-labs/storefront/internal/domain"
)

// commerceAPI abstracts the commerce client for easier testing.
type commerceAPI interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
	Post(ctx context.Context, endpoint string, body any, opts commerce.PostOptions) ([]byte, error)
	Put(ctx context.Context, endpoint string, body any) ([]byte, error)
}

// CalculateCommand is the input for a totals and shipping calculation.
type CalculateCommand struct {
	Items                []domain.CartItem
	Email                string
	ShippingAddress      *domain.Person
	BillingAddress       *domain.Person
	SelectedShippingID   string
	SelectedShippingName string
	CouponCode           string
}

// CalculationResult carries normalized totals and the quoted shipping options.
type CalculationResult struct {
	Totals          domain.Totals
	ShippingOptions []domain.ShippingOption
	// DefaultOption is the option to pre-select in the UI. Nil when no
	// options are available.
	DefaultOption *domain.ShippingOption
}

// CalculationService computes order totals via the commerce platform.
type CalculationService interface {
	Calculate(ctx context.Context, cmd CalculateCommand) (CalculationResult, error)
}

// CreateOrderCommand is the input for creating an external order.
type CreateOrderCommand struct {
	Items           []domain.CartItem
	Email           string
	ShippingAddress *domain.Person
	BillingAddress  *domain.Person
	ShippingOption  *domain.ShippingOption
	CouponCode      string
	Comments        string
	// Totals, when set, are submitted with the order instead of letting the
	// platform recompute them. Used by the payment-link flow.
	Totals *domain.Totals
}

// OrderRef identifies an order created on the commerce platform.
type OrderRef struct {
	ID         int64
	Number     int64
	PaymentURL string
}

// MarkOrderPaidCommand records a confirmed payment against an order.
type MarkOrderPaidCommand struct {
	OrderID       int64
	TransactionID string
	Note          string
}

// CancelOrderCommand cancels an order that was never paid.
type CancelOrderCommand struct {
	OrderID int64
	Reason  string
}

// OrderService creates and mutates orders on the commerce platform.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderRef, error)
	CreatePaymentLink(ctx context.Context, cmd CreateOrderCommand) (OrderRef, error)
	MarkOrderPaid(ctx context.Context, cmd MarkOrderPaidCommand) error
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) error
}

// CheckoutSessionCommand is the input for the combined order-plus-payment flow.
type CheckoutSessionCommand struct {
	Items           []domain.CartItem
	Email           string
	ShippingAddress *domain.Person
	BillingAddress  *domain.Person
	ShippingOption  *domain.ShippingOption
	Totals          domain.Totals
	CouponCode      string
	Comments        string
}

// CheckoutSessionResult carries the created order identity and the hosted
// payment page to redirect the shopper to.
type CheckoutSessionResult struct {
	OrderID     int64
	OrderNumber int64
	SessionID   string
	RedirectURL string
}

// CheckoutService orchestrates order creation and the payment session.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CheckoutSessionCommand) (CheckoutSessionResult, error)
}

// InvalidateCommand selects cached catalog entries to drop.
type InvalidateCommand struct {
	Path string
	Tag  string
}

// CatalogService serves read-only catalog data with short-lived caching.
type CatalogService interface {
	Products(ctx context.Context, params url.Values) ([]byte, error)
	Store(ctx context.Context) ([]byte, error)
	Product(ctx context.Context, slug string) ([]byte, error)
	Invalidate(ctx context.Context, cmd InvalidateCommand) error
}
