package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-labs/storefront/internal/domain"
	"github.com/splat-labs/storefront/internal/services"
)

type stubCalculationService struct {
	result services.CalculationResult
	err    error
	calls  int
}

func (s *stubCalculationService) Calculate(context.Context, services.CalculateCommand) (services.CalculationResult, error) {
	s.calls++
	if s.err != nil {
		return services.CalculationResult{}, s.err
	}
	return s.result, nil
}

type stubCheckoutService struct {
	result services.CheckoutSessionResult
	err    error
}

func (s *stubCheckoutService) CreateCheckoutSession(context.Context, services.CheckoutSessionCommand) (services.CheckoutSessionResult, error) {
	if s.err != nil {
		return services.CheckoutSessionResult{}, s.err
	}
	return s.result, nil
}

func checkoutRouter(h *CheckoutHandlers) chi.Router {
	r := chi.NewRouter()
	r.Route("/checkout", h.Routes)
	return r
}

func postJSON(t *testing.T, router chi.Router, path string, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCalculateReturnsTotals(t *testing.T) {
	def := domain.ShippingOption{MethodID: "m1", MethodName: "Ground", Rate: 10}
	calc := &stubCalculationService{result: services.CalculationResult{
		Totals:          domain.Totals{Subtotal: 100, Shipping: 10, Tax: 8, Total: 118},
		ShippingOptions: []domain.ShippingOption{def},
		DefaultOption:   &def,
	}}
	h := NewCheckoutHandlers(calc, &stubCheckoutService{}, &stubOrderService{})

	rec := postJSON(t, checkoutRouter(h), "/checkout/calculate", `{
		"items": [{"productId": 1, "name": "Widget", "unitPrice": 50, "quantity": 2}],
		"email": "shopper@example.com",
		"shippingAddress": {"name": "Ada", "street": "1 Ink St", "city": "Splatville", "postalCode": "12345", "countryCode": "US"}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	totals := body["totals"].(map[string]any)
	assert.Equal(t, float64(118), totals["total"])
}

func TestCalculateMapsValidationTo400(t *testing.T) {
	calc := &stubCalculationService{err: services.ErrInvalidInput}
	h := NewCheckoutHandlers(calc, &stubCheckoutService{}, &stubOrderService{})

	rec := postJSON(t, checkoutRouter(h), "/checkout/calculate", `{"items": []}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
}

func TestCalculateMapsNoShippingTo400WithDistinctCode(t *testing.T) {
	calc := &stubCalculationService{err: services.ErrNoShippingOptions}
	h := NewCheckoutHandlers(calc, &stubCheckoutService{}, &stubOrderService{})

	rec := postJSON(t, checkoutRouter(h), "/checkout/calculate", `{"items": [{"productId": 1, "quantity": 1}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_shipping_options", decodeBody(t, rec)["error"])
}

func TestCalculateMapsUpstreamTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUpstreamRejected, http.StatusBadRequest, "order_rejected"},
		{services.ErrUpstreamAuth, http.StatusInternalServerError, "configuration_error"},
		{services.ErrUpstreamUnavailable, http.StatusInternalServerError, "upstream_unavailable"},
	}

	for _, tc := range cases {
		calc := &stubCalculationService{err: tc.err}
		h := NewCheckoutHandlers(calc, &stubCheckoutService{}, &stubOrderService{})

		rec := postJSON(t, checkoutRouter(h), "/checkout/calculate", `{"items": [{"productId": 1, "quantity": 1}]}`)

		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.code, decodeBody(t, rec)["error"])
	}
}

func TestCalculateRejectsMalformedJSON(t *testing.T) {
	h := NewCheckoutHandlers(&stubCalculationService{}, &stubCheckoutService{}, &stubOrderService{})

	rec := postJSON(t, checkoutRouter(h), "/checkout/calculate", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCheckoutSessionReturnsRedirect(t *testing.T) {
	checkout := &stubCheckoutService{result: services.CheckoutSessionResult{
		OrderID: 42, OrderNumber: 1042, SessionID: "cs_test_123",
		RedirectURL: "https://checkout.stripe.test/cs_test_123",
	}}
	h := NewCheckoutHandlers(&stubCalculationService{}, checkout, &stubOrderService{})

	rec := postJSON(t, checkoutRouter(h), "/checkout/create-checkout-session", `{
		"items": [{"productId": 1, "unitPrice": 50, "quantity": 2}],
		"email": "shopper@example.com",
		"shippingAddress": {"name": "Ada", "street": "1 Ink St", "city": "Splatville", "postalCode": "12345", "countryCode": "US"},
		"shippingOption": {"methodId": "m1", "methodName": "Ground", "rate": 10},
		"totals": {"subtotal": 100, "shipping": 10, "tax": 8, "total": 118}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(42), body["orderId"])
	assert.Equal(t, "https://checkout.stripe.test/cs_test_123", body["url"])
}

func TestCreateCheckoutSessionUnavailableWhenUnconfigured(t *testing.T) {
	h := NewCheckoutHandlers(&stubCalculationService{}, nil, &stubOrderService{})

	rec := postJSON(t, checkoutRouter(h), "/checkout/create-checkout-session", `{}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "configuration_error", decodeBody(t, rec)["error"])
}

func TestCreatePaymentLinkReturnsHostedURL(t *testing.T) {
	orders := &stubOrderService{linkRef: services.OrderRef{ID: 42, Number: 1042, PaymentURL: "https://pay.example/42"}}
	h := NewCheckoutHandlers(&stubCalculationService{}, &stubCheckoutService{}, orders)

	rec := postJSON(t, checkoutRouter(h), "/checkout/create-payment-link", `{
		"items": [{"productId": 1, "unitPrice": 50, "quantity": 2}],
		"email": "shopper@example.com",
		"shippingAddress": {"name": "Ada", "street": "1 Ink St", "city": "Splatville", "postalCode": "12345", "countryCode": "US"},
		"shippingOption": {"methodId": "m1", "methodName": "Ground", "rate": 10}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://pay.example/42", decodeBody(t, rec)["paymentUrl"])
}

func TestCancelOrder(t *testing.T) {
	orders := &stubOrderService{}
	h := NewCheckoutHandlers(&stubCalculationService{}, &stubCheckoutService{}, orders)

	rec := postJSON(t, checkoutRouter(h), "/checkout/cancel-order", `{"orderId": 42, "reason": "changed my mind"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, orders.cancelCmds, 1)
	assert.Equal(t, int64(42), orders.cancelCmds[0].OrderID)
	assert.Equal(t, "changed my mind", orders.cancelCmds[0].Reason)
}
