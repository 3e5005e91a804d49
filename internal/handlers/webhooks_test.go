package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/splat-labs/storefront/internal/services"
)

type stubCatalogService struct {
	invalidations []services.InvalidateCommand
	invalidateErr error
	products      []byte
	productsErr   error
}

func (s *stubCatalogService) Products(_ context.Context, _ url.Values) ([]byte, error) {
	if s.productsErr != nil {
		return nil, s.productsErr
	}
	return s.products, nil
}

func (s *stubCatalogService) Store(context.Context) ([]byte, error) {
	return s.products, s.productsErr
}

func (s *stubCatalogService) Product(context.Context, string) ([]byte, error) {
	return s.products, s.productsErr
}

func (s *stubCatalogService) Invalidate(_ context.Context, cmd services.InvalidateCommand) error {
	s.invalidations = append(s.invalidations, cmd)
	return s.invalidateErr
}

type stubOrderService struct {
	paidCmds   []services.MarkOrderPaidCommand
	paidErr    error
	cancelCmds []services.CancelOrderCommand
	cancelErr  error
	linkRef    services.OrderRef
	linkErr    error
}

func (s *stubOrderService) CreateOrder(context.Context, services.CreateOrderCommand) (services.OrderRef, error) {
	return services.OrderRef{}, errors.New("not implemented")
}

func (s *stubOrderService) CreatePaymentLink(_ context.Context, _ services.CreateOrderCommand) (services.OrderRef, error) {
	if s.linkErr != nil {
		return services.OrderRef{}, s.linkErr
	}
	return s.linkRef, nil
}

func (s *stubOrderService) MarkOrderPaid(_ context.Context, cmd services.MarkOrderPaidCommand) error {
	s.paidCmds = append(s.paidCmds, cmd)
	return s.paidErr
}

func (s *stubOrderService) CancelOrder(_ context.Context, cmd services.CancelOrderCommand) error {
	s.cancelCmds = append(s.cancelCmds, cmd)
	return s.cancelErr
}

type stubVerifier struct {
	event stripe.Event
	err   error
}

func (s *stubVerifier) VerifyEvent(_ []byte, _ string) (stripe.Event, error) {
	if s.err != nil {
		return stripe.Event{}, s.err
	}
	return s.event, nil
}

func signCommerce(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func commerceRouter(h *CommerceWebhookHandlers) chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestCommerceWebhookRejectsInvalidSignature(t *testing.T) {
	catalog := &stubCatalogService{}
	h := NewCommerceWebhookHandlers("topsecret", "10001", catalog)

	body := []byte(`{"eventId":"e1","eventType":"product.updated","storeId":10001}`)
	req := httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader(body))
	req.Header.Set("X-Ecwid-Webhook-Signature", "bogus")
	rec := httptest.NewRecorder()

	commerceRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, catalog.invalidations, "no downstream call may happen on bad signature")
}

func TestCommerceWebhookAcceptsValidSignature(t *testing.T) {
	catalog := &stubCatalogService{}
	h := NewCommerceWebhookHandlers("topsecret", "10001", catalog)

	body := []byte(`{"eventId":"e1","eventType":"product.updated","storeId":10001}`)
	req := httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader(body))
	req.Header.Set("X-Ecwid-Webhook-Signature", signCommerce(body, "topsecret"))
	rec := httptest.NewRecorder()

	commerceRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, catalog.invalidations, 1)
	assert.Equal(t, "products", catalog.invalidations[0].Tag)
}

func TestCommerceWebhookSkipsVerificationWithoutSecret(t *testing.T) {
	catalog := &stubCatalogService{}
	h := NewCommerceWebhookHandlers("", "10001", catalog)

	body := []byte(`{"eventId":"e1","eventType":"category.updated","storeId":10001}`)
	req := httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	commerceRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, catalog.invalidations, 1)
}

func TestCommerceWebhookStructuralValidation(t *testing.T) {
	h := NewCommerceWebhookHandlers("", "10001", &stubCatalogService{})

	req := httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader([]byte(`{"eventId":"e1","storeId":10001}`)))
	rec := httptest.NewRecorder()
	commerceRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing eventType")

	req = httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader([]byte(`{"eventId":"e1","eventType":"product.updated","storeId":999}`)))
	rec = httptest.NewRecorder()
	commerceRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "store mismatch")
}

func TestCommerceWebhookReturns200WhenHandlerFails(t *testing.T) {
	catalog := &stubCatalogService{invalidateErr: errors.New("cache down")}
	h := NewCommerceWebhookHandlers("", "10001", catalog)

	body := []byte(`{"eventId":"e1","eventType":"product.deleted","storeId":10001}`)
	req := httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	commerceRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "handler failures must not invite retries")
}

func TestCommerceWebhookIgnoresOrderEvents(t *testing.T) {
	catalog := &stubCatalogService{}
	h := NewCommerceWebhookHandlers("", "10001", catalog)

	body := []byte(`{"eventId":"e1","eventType":"order.created","storeId":10001,"entityId":42}`)
	req := httptest.NewRequest(http.MethodPost, "/ecwid", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	commerceRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, catalog.invalidations)
}

func stripeRouter(h *StripeWebhookHandlers) chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func paidSessionEvent(t *testing.T, paymentStatus string) stripe.Event {
	t.Helper()
	raw := []byte(`{
		"id": "cs_test_123",
		"payment_status": "` + paymentStatus + `",
		"payment_intent": {"id": "pi_123"},
		"metadata": {"ecwid_order_id": "42", "order_number": "1042"}
	}`)
	return stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	orders := &stubOrderService{}
	h := NewStripeWebhookHandlers(&stubVerifier{err: errors.New("bad signature")}, orders)

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orders.paidCmds)
}

func TestStripeWebhookMarksOrderPaid(t *testing.T) {
	orders := &stubOrderService{}
	h := NewStripeWebhookHandlers(&stubVerifier{event: paidSessionEvent(t, "paid")}, orders)

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, orders.paidCmds, 1)
	assert.Equal(t, int64(42), orders.paidCmds[0].OrderID)
	assert.Equal(t, "pi_123", orders.paidCmds[0].TransactionID)
}

func TestStripeWebhookReturns500WhenPaidUpdateFails(t *testing.T) {
	orders := &stubOrderService{paidErr: errors.New("upstream down")}
	h := NewStripeWebhookHandlers(&stubVerifier{event: paidSessionEvent(t, "paid")}, orders)

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code, "Stripe must retry missed paid updates")
}

func TestStripeWebhookIgnoresUnpaidCompletion(t *testing.T) {
	orders := &stubOrderService{}
	h := NewStripeWebhookHandlers(&stubVerifier{event: paidSessionEvent(t, "unpaid")}, orders)

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, orders.paidCmds)
}

func TestStripeWebhookExpiredSessionCancelsBestEffort(t *testing.T) {
	event := paidSessionEvent(t, "unpaid")
	event.Type = "checkout.session.expired"

	orders := &stubOrderService{cancelErr: errors.New("upstream down")}
	h := NewStripeWebhookHandlers(&stubVerifier{event: event}, orders)

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "cancellation failure must not fail the webhook")
	require.Len(t, orders.cancelCmds, 1)
	assert.Equal(t, int64(42), orders.cancelCmds[0].OrderID)
}

func TestStripeWebhookRejectsMissingMetadata(t *testing.T) {
	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: []byte(`{"id": "cs_test_123", "payment_status": "paid", "metadata": {}}`)},
	}
	orders := &stubOrderService{}
	h := NewStripeWebhookHandlers(&stubVerifier{event: event}, orders)

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orders.paidCmds)
}

func TestStripeWebhookIgnoresUnknownEvents(t *testing.T) {
	event := stripe.Event{Type: "invoice.created", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	h := NewStripeWebhookHandlers(&stubVerifier{event: event}, &stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	stripeRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
