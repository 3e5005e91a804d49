package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splat-labs/storefront/internal/domain"
	"github.com/splat-labs/storefront/internal/platform/httpx"
	"github.com/splat-labs/storefront/internal/services"
)

const maxCheckoutRequestBody = 64 * 1024

// CheckoutHandlers exposes the checkout orchestration endpoints.
type CheckoutHandlers struct {
	calculator services.CalculationService
	checkout   services.CheckoutService
	orders     services.OrderService
}

// NewCheckoutHandlers constructs the checkout handler set.
func NewCheckoutHandlers(calculator services.CalculationService, checkout services.CheckoutService, orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{
		calculator: calculator,
		checkout:   checkout,
		orders:     orders,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/calculate", h.calculate)
	r.Post("/create-checkout-session", h.createCheckoutSession)
	r.Post("/create-payment-link", h.createPaymentLink)
	r.Post("/cancel-order", h.cancelOrder)
}

type shippingSelection struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type calculateRequest struct {
	Items           []domain.CartItem  `json:"items"`
	Email           string             `json:"email"`
	ShippingAddress *domain.Person     `json:"shippingAddress"`
	BillingAddress  *domain.Person     `json:"billingAddress,omitempty"`
	ShippingOption  *shippingSelection `json:"shippingOption,omitempty"`
	CouponCode      string             `json:"couponCode,omitempty"`
}

type calculateResponse struct {
	Totals          domain.Totals           `json:"totals"`
	ShippingOptions []domain.ShippingOption `json:"shippingOptions"`
	DefaultOption   *domain.ShippingOption  `json:"defaultOption,omitempty"`
}

func (h *CheckoutHandlers) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req calculateRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	cmd := services.CalculateCommand{
		Items:           req.Items,
		Email:           req.Email,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CouponCode:      req.CouponCode,
	}
	if req.ShippingOption != nil {
		cmd.SelectedShippingID = req.ShippingOption.ID
		cmd.SelectedShippingName = req.ShippingOption.Name
	}

	result, err := h.calculator.Calculate(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, calculateResponse{
		Totals:          result.Totals,
		ShippingOptions: result.ShippingOptions,
		DefaultOption:   result.DefaultOption,
	})
}

type createSessionRequest struct {
	Items           []domain.CartItem      `json:"items"`
	Email           string                 `json:"email"`
	ShippingAddress *domain.Person         `json:"shippingAddress"`
	BillingAddress  *domain.Person         `json:"billingAddress,omitempty"`
	ShippingOption  *domain.ShippingOption `json:"shippingOption"`
	Totals          domain.Totals          `json:"totals"`
	CouponCode      string                 `json:"couponCode,omitempty"`
	Comments        string                 `json:"comments,omitempty"`
}

type createSessionResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber int64  `json:"orderNumber"`
	SessionID   string `json:"sessionId"`
	URL         string `json:"url"`
}

func (h *CheckoutHandlers) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("configuration_error", "hosted checkout is not configured", http.StatusServiceUnavailable))
		return
	}

	var req createSessionRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	result, err := h.checkout.CreateCheckoutSession(ctx, services.CheckoutSessionCommand{
		Items:           req.Items,
		Email:           req.Email,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingOption:  req.ShippingOption,
		Totals:          req.Totals,
		CouponCode:      req.CouponCode,
		Comments:        req.Comments,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, createSessionResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		SessionID:   result.SessionID,
		URL:         result.RedirectURL,
	})
}

type paymentLinkRequest struct {
	Items           []domain.CartItem      `json:"items"`
	Email           string                 `json:"email"`
	ShippingAddress *domain.Person         `json:"shippingAddress"`
	BillingAddress  *domain.Person         `json:"billingAddress,omitempty"`
	ShippingOption  *domain.ShippingOption `json:"shippingOption"`
	Totals          *domain.Totals         `json:"totals,omitempty"`
	CouponCode      string                 `json:"couponCode,omitempty"`
	Comments        string                 `json:"comments,omitempty"`
}

type paymentLinkResponse struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber int64  `json:"orderNumber"`
	PaymentURL  string `json:"paymentUrl"`
}

func (h *CheckoutHandlers) createPaymentLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req paymentLinkRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	ref, err := h.orders.CreatePaymentLink(ctx, services.CreateOrderCommand{
		Items:           req.Items,
		Email:           req.Email,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingOption:  req.ShippingOption,
		CouponCode:      req.CouponCode,
		Comments:        req.Comments,
		Totals:          req.Totals,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentLinkResponse{
		OrderID:     ref.ID,
		OrderNumber: ref.Number,
		PaymentURL:  ref.PaymentURL,
	})
}

type cancelOrderRequest struct {
	OrderID int64  `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

func (h *CheckoutHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req cancelOrderRequest
	if !h.decode(ctx, w, r, &req) {
		return
	}

	if err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: req.OrderID,
		Reason:  req.Reason,
	}); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (h *CheckoutHandlers) decode(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// writeServiceError maps the service error taxonomy to HTTP responses. Auth
// failures against the platform are never the shopper's fault, so they map
// to 500 rather than leaking as a user-fixable error.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNoShippingOptions):
		httpx.WriteError(ctx, w, httpx.NewError("no_shipping_options", "no shipping available for this address", http.StatusBadRequest))
	case errors.Is(err, services.ErrUpstreamRejected):
		httpx.WriteError(ctx, w, httpx.NewError("order_rejected", "please check your information and try again", http.StatusBadRequest))
	case errors.Is(err, services.ErrUpstreamAuth):
		httpx.WriteError(ctx, w, httpx.NewError("configuration_error", "something went wrong, please contact support", http.StatusInternalServerError))
	case errors.Is(err, services.ErrUpstreamUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("upstream_unavailable", "something went wrong, please try again", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}
