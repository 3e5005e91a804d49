package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/splat-labs/storefront/internal/commerce"
	"github.com/splat-labs/storefront/internal/domain"
)

const ordersEndpoint = "orders"

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Commerce commerceAPI
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	commerce commerceAPI
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Commerce == nil {
		return nil, errors.New("order service: commerce client is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		commerce: deps.Commerce,
		logger:   logger,
	}, nil
}

// CreateOrder submits a new order in awaiting-payment state. Creation is a
// single call to the platform, so a validation failure leaves nothing behind.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderRef, error) {
	ref, err := s.create(ctx, cmd)
	if err != nil {
		return OrderRef{}, err
	}

	s.logger(ctx, "orders.created", map[string]any{
		"orderId":     ref.ID,
		"orderNumber": ref.Number,
	})
	return ref, nil
}

// CreatePaymentLink creates the order and returns the platform's hosted
// payment URL for it.
func (s *orderService) CreatePaymentLink(ctx context.Context, cmd CreateOrderCommand) (OrderRef, error) {
	ref, err := s.create(ctx, cmd)
	if err != nil {
		return OrderRef{}, err
	}
	if ref.PaymentURL == "" {
		return OrderRef{}, fmt.Errorf("%w: order %d has no payment url", ErrUpstreamUnavailable, ref.ID)
	}

	s.logger(ctx, "orders.payment_link.created", map[string]any{
		"orderId":     ref.ID,
		"orderNumber": ref.Number,
	})
	return ref, nil
}

func (s *orderService) create(ctx context.Context, cmd CreateOrderCommand) (OrderRef, error) {
	if err := validateItems(cmd.Items); err != nil {
		return OrderRef{}, err
	}
	if err := validateEmail(cmd.Email); err != nil {
		return OrderRef{}, err
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return OrderRef{}, err
	}
	if cmd.ShippingOption == nil {
		return OrderRef{}, fmt.Errorf("%w: shipping option is required", ErrInvalidInput)
	}

	req := commerce.CreateOrderRequest{
		Items:           commerce.ItemPayloads(cmd.Items),
		Email:           strings.TrimSpace(cmd.Email),
		ShippingAddress: commerce.AddressPayload(cmd.ShippingAddress),
		BillingAddress:  commerce.AddressPayload(cmd.BillingAddress),
		ShippingOption: &commerce.SelectedShippingPayload{
			ID:   cmd.ShippingOption.MethodID,
			Name: cmd.ShippingOption.MethodName,
		},
		CouponCode:        strings.TrimSpace(cmd.CouponCode),
		PaymentStatus:     string(domain.PaymentStatusAwaiting),
		FulfillmentStatus: string(domain.FulfillmentAwaitingProcessing),
		OrderComments:     strings.TrimSpace(cmd.Comments),
	}
	if cmd.Totals != nil {
		req.Subtotal = cmd.Totals.Subtotal
		req.Total = cmd.Totals.Total
		req.Tax = cmd.Totals.Tax
	}

	body, err := s.commerce.Post(ctx, ordersEndpoint, req, commerce.PostOptions{UsePublicToken: true})
	if err != nil {
		return OrderRef{}, translateCommerceError(err)
	}

	var resp commerce.CreateOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderRef{}, fmt.Errorf("%w: decode order response: %v", ErrUpstreamUnavailable, err)
	}
	if resp.ID == 0 {
		return OrderRef{}, fmt.Errorf("%w: order response carried no id", ErrUpstreamUnavailable)
	}

	return OrderRef{ID: resp.ID, Number: resp.OrderNumber, PaymentURL: resp.PaymentURL}, nil
}

// MarkOrderPaid transitions an order to PAID and records the payment
// reference. Applying it twice is harmless, the platform overwrites the same
// fields with the same values.
func (s *orderService) MarkOrderPaid(ctx context.Context, cmd MarkOrderPaidCommand) error {
	if cmd.OrderID <= 0 {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	update := commerce.OrderUpdatePayload{
		PaymentStatus:         string(domain.PaymentStatusPaid),
		ExternalTransactionID: strings.TrimSpace(cmd.TransactionID),
		PrivateAdminNotes:     strings.TrimSpace(cmd.Note),
	}
	if _, err := s.commerce.Put(ctx, orderEndpoint(cmd.OrderID), update); err != nil {
		return translateCommerceError(err)
	}

	s.logger(ctx, "orders.marked_paid", map[string]any{
		"orderId":       cmd.OrderID,
		"transactionId": cmd.TransactionID,
	})
	return nil
}

// CancelOrder transitions an order to CANCELLED with an optional reason.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) error {
	if cmd.OrderID <= 0 {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	update := commerce.OrderUpdatePayload{
		PaymentStatus:     string(domain.PaymentStatusCancelled),
		PrivateAdminNotes: strings.TrimSpace(cmd.Reason),
	}
	if _, err := s.commerce.Put(ctx, orderEndpoint(cmd.OrderID), update); err != nil {
		return translateCommerceError(err)
	}

	s.logger(ctx, "orders.cancelled", map[string]any{
		"orderId": cmd.OrderID,
		"reason":  cmd.Reason,
	})
	return nil
}

func orderEndpoint(orderID int64) string {
	return ordersEndpoint + "/" + strconv.FormatInt(orderID, 10)
}
