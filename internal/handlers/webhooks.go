package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	"github.com/splat-labs/storefront/internal/commerce"
	"github.com/splat-labs/storefront/internal/payments"
	"github.com/splat-labs/storefront/internal/platform/httpx"
	"github.com/splat-labs/storefront/internal/platform/requestctx"
	"github.com/splat-labs/storefront/internal/services"
)

const (
	maxWebhookBody          = 256 * 1024
	commerceSignatureHeader = "X-Ecwid-Webhook-Signature"
	stripeSignatureHeader   = "Stripe-Signature"
	eventCheckoutCompleted  = "checkout.session.completed"
	eventCheckoutExpired    = "checkout.session.expired"
	metadataKeyOrderID      = "ecwid_order_id"
)

// CommerceWebhookHandlers reconciles events pushed by the commerce platform.
type CommerceWebhookHandlers struct {
	secret  string
	storeID string
	catalog services.CatalogService
}

// NewCommerceWebhookHandlers constructs the commerce webhook handler. An
// empty secret disables signature checking, a deliberate soft-fail for
// environments without webhook security configured.
func NewCommerceWebhookHandlers(secret, storeID string, catalog services.CatalogService) *CommerceWebhookHandlers {
	return &CommerceWebhookHandlers{
		secret:  secret,
		storeID: storeID,
		catalog: catalog,
	}
}

// Routes registers the commerce webhook endpoint under the provided router.
func (h *CommerceWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/ecwid", h.handle)
}

func (h *CommerceWebhookHandlers) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	body, err := readLimitedBody(r, maxWebhookBody)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	if h.secret != "" {
		if !verifyCommerceSignature(body, r.Header.Get(commerceSignatureHeader), h.secret) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature mismatch", http.StatusUnauthorized))
			return
		}
	}

	var event commerce.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "webhook payload must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(event.EventType) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "eventType is required", http.StatusBadRequest))
		return
	}
	if h.storeID != "" && strconv.FormatInt(event.StoreID, 10) != h.storeID {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "storeId does not match", http.StatusBadRequest))
		return
	}

	// Past this point the payload is structurally valid, so the response is
	// always 200. Failing here would only provoke upstream retry storms over
	// effects that are non-critical cache invalidation.
	if err := h.dispatch(r, event); err != nil {
		logger.Warn("commerce webhook handling failed",
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

func (h *CommerceWebhookHandlers) dispatch(r *http.Request, event commerce.WebhookEvent) error {
	ctx := r.Context()
	switch {
	case strings.HasPrefix(event.EventType, "product."), strings.HasPrefix(event.EventType, "category."):
		if h.catalog == nil {
			return nil
		}
		return h.catalog.Invalidate(ctx, services.InvalidateCommand{Tag: "products"})
	default:
		// order.* and unrecognised events carry no local state to update.
		return nil
	}
}

func verifyCommerceSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// StripeWebhookHandlers reconciles asynchronous payment events back onto the
// external order they belong to.
type StripeWebhookHandlers struct {
	verifier payments.EventVerifier
	orders   services.OrderService
}

// NewStripeWebhookHandlers constructs the payment webhook handler.
func NewStripeWebhookHandlers(verifier payments.EventVerifier, orders services.OrderService) *StripeWebhookHandlers {
	return &StripeWebhookHandlers{
		verifier: verifier,
		orders:   orders,
	}
}

// Routes registers the payment webhook endpoint under the provided router.
func (h *StripeWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handle)
}

func (h *StripeWebhookHandlers) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	body, err := readLimitedBody(r, maxWebhookBody)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.VerifyEvent(body, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook verification failed", http.StatusBadRequest))
		return
	}

	switch string(event.Type) {
	case eventCheckoutCompleted:
		h.handleCompleted(w, r, event)
	case eventCheckoutExpired:
		h.handleExpired(w, r, event)
	default:
		logger.Debug("stripe event ignored", zap.String("event_type", string(event.Type)))
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
	}
}

func (h *StripeWebhookHandlers) handleCompleted(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	session, orderID, err := h.decodeSession(event)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", err.Error(), http.StatusBadRequest))
		return
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		logger.Info("checkout session completed without payment",
			zap.Int64("order_id", orderID),
			zap.String("payment_status", string(session.PaymentStatus)),
		)
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	transactionID := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		transactionID = session.PaymentIntent.ID
	}

	err = h.orders.MarkOrderPaid(ctx, services.MarkOrderPaidCommand{
		OrderID:       orderID,
		TransactionID: transactionID,
		Note:          fmt.Sprintf("Paid via Stripe Checkout session %s", session.ID),
	})
	if err != nil {
		// A missed paid-order update is business critical. Respond 500 so
		// Stripe retries the delivery.
		logger.Error("failed to mark order paid",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		httpx.WriteError(ctx, w, httpx.NewError("order_update_failed", "unable to record payment", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

func (h *StripeWebhookHandlers) handleExpired(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	_, orderID, err := h.decodeSession(event)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", err.Error(), http.StatusBadRequest))
		return
	}

	// Best effort. The order is unpaid either way, cancellation just keeps
	// the store admin's queue tidy.
	if err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Reason:  "checkout session expired",
	}); err != nil {
		logger.Warn("failed to cancel expired order",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

func (h *StripeWebhookHandlers) decodeSession(event stripe.Event) (stripe.CheckoutSession, int64, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return stripe.CheckoutSession{}, 0, fmt.Errorf("event data is not a checkout session: %w", err)
	}

	raw, ok := session.Metadata[metadataKeyOrderID]
	if !ok {
		return stripe.CheckoutSession{}, 0, fmt.Errorf("session metadata is missing %s", metadataKeyOrderID)
	}
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || orderID <= 0 {
		return stripe.CheckoutSession{}, 0, fmt.Errorf("session metadata %s is not a valid order id", metadataKeyOrderID)
	}

	return session, orderID, nil
}
