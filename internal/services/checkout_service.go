package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/splat-labs/storefront/internal/analytics"
	"github.com/splat-labs/storefront/internal/payments"
)

const defaultCheckoutCurrency = "usd"

// Metadata keys threading the external order identity through the payment
// session so webhook events can be correlated back to the order.
const (
	metadataOrderID     = "ecwid_order_id"
	metadataOrderNumber = "order_number"
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders      OrderService
	Payments    payments.Provider
	SiteBaseURL string
	Currency    string
	Analytics   analytics.Emitter
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders      OrderService
	payments    payments.Provider
	siteBaseURL string
	currency    string
	analytics   analytics.Emitter
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	siteBaseURL := strings.TrimRight(strings.TrimSpace(deps.SiteBaseURL), "/")
	if siteBaseURL == "" {
		return nil, errors.New("checkout service: site base URL is required")
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCheckoutCurrency
	}
	emitter := deps.Analytics
	if emitter == nil {
		emitter = analytics.NoopEmitter{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:      deps.Orders,
		payments:    deps.Payments,
		siteBaseURL: siteBaseURL,
		currency:    currency,
		analytics:   emitter,
		logger:      logger,
	}, nil
}

// CreateCheckoutSession creates the external order first, then a hosted
// payment session whose line items mirror the cart. The order id returned by
// creation is immutable and is threaded unchanged through the session
// metadata.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CheckoutSessionCommand) (CheckoutSessionResult, error) {
	ref, err := s.orders.CreateOrder(ctx, CreateOrderCommand{
		Items:           cmd.Items,
		Email:           cmd.Email,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cmd.BillingAddress,
		ShippingOption:  cmd.ShippingOption,
		CouponCode:      cmd.CouponCode,
		Comments:        cmd.Comments,
	})
	if err != nil {
		return CheckoutSessionResult{}, err
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.SessionRequest{
		Currency:      s.currency,
		CustomerEmail: strings.TrimSpace(cmd.Email),
		SuccessURL:    fmt.Sprintf("%s/checkout/success?order=%d", s.siteBaseURL, ref.Number),
		CancelURL:     s.siteBaseURL + "/checkout",
		Metadata: map[string]string{
			metadataOrderID:     strconv.FormatInt(ref.ID, 10),
			metadataOrderNumber: strconv.FormatInt(ref.Number, 10),
		},
		Items: s.buildLineItems(cmd),
	})
	if err != nil {
		// The order stays in awaiting-payment state; cancel it so the store
		// admin does not chase an order nobody can pay for.
		if cancelErr := s.orders.CancelOrder(ctx, CancelOrderCommand{
			OrderID: ref.ID,
			Reason:  "payment session creation failed",
		}); cancelErr != nil {
			s.logger(ctx, "checkout.session.cancel_failed", map[string]any{
				"orderId": ref.ID,
				"error":   cancelErr.Error(),
			})
		}
		return CheckoutSessionResult{}, fmt.Errorf("checkout: create payment session: %w", err)
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"orderId":     ref.ID,
		"orderNumber": ref.Number,
		"sessionId":   session.ID,
	})
	s.analytics.Emit(ctx, "checkout.session.created", map[string]any{
		"orderId":     ref.ID,
		"orderNumber": ref.Number,
	})

	return CheckoutSessionResult{
		OrderID:     ref.ID,
		OrderNumber: ref.Number,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	}, nil
}

// buildLineItems mirrors the cart into payment lines, adding synthetic lines
// for shipping, tax, and discount. Discount is expressed as a negative line.
func (s *checkoutService) buildLineItems(cmd CheckoutSessionCommand) []payments.LineItem {
	lines := make([]payments.LineItem, 0, len(cmd.Items)+3)
	for _, item := range cmd.Items {
		lines = append(lines, payments.LineItem{
			Name:     item.Name,
			SKU:      item.SKU,
			Quantity: int64(item.Quantity),
			Amount:   toCents(item.UnitPrice),
			Currency: s.currency,
		})
	}

	if cmd.ShippingOption != nil && cmd.ShippingOption.Rate > 0 {
		lines = append(lines, payments.LineItem{
			Name:     "Shipping: " + cmd.ShippingOption.MethodName,
			Quantity: 1,
			Amount:   toCents(cmd.ShippingOption.Rate),
			Currency: s.currency,
		})
	}
	if cmd.Totals.Tax > 0 {
		lines = append(lines, payments.LineItem{
			Name:     "Tax",
			Quantity: 1,
			Amount:   toCents(cmd.Totals.Tax),
			Currency: s.currency,
		})
	}
	if discount := cmd.Totals.Discount + cmd.Totals.CouponDiscount; discount > 0 {
		lines = append(lines, payments.LineItem{
			Name:     "Discount",
			Quantity: 1,
			Amount:   -toCents(discount),
			Currency: s.currency,
		})
	}

	return lines
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
