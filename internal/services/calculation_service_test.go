package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/splat-labs/storefront/internal/commerce"
	"github.com/splat-labs/storefront/internal/domain"
)

type stubCommerce struct {
	postBodies    []any
	postResponses [][]byte
	postErrs      []error
	getResponse   []byte
	getErr        error
	putBodies     []any
	putEndpoints  []string
	putErr        error
	getEndpoints  []string
	postEndpoints []string
	postOpts      []commerce.PostOptions
}

func (s *stubCommerce) Get(_ context.Context, endpoint string, _ url.Values) ([]byte, error) {
	s.getEndpoints = append(s.getEndpoints, endpoint)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getResponse, nil
}

func (s *stubCommerce) Post(_ context.Context, endpoint string, body any, opts commerce.PostOptions) ([]byte, error) {
	call := len(s.postBodies)
	s.postBodies = append(s.postBodies, body)
	s.postEndpoints = append(s.postEndpoints, endpoint)
	s.postOpts = append(s.postOpts, opts)
	if call < len(s.postErrs) && s.postErrs[call] != nil {
		return nil, s.postErrs[call]
	}
	if call < len(s.postResponses) {
		return s.postResponses[call], nil
	}
	return []byte(`{}`), nil
}

func (s *stubCommerce) Put(_ context.Context, endpoint string, body any) ([]byte, error) {
	s.putEndpoints = append(s.putEndpoints, endpoint)
	s.putBodies = append(s.putBodies, body)
	if s.putErr != nil {
		return nil, s.putErr
	}
	return []byte(`{"updateCount":1}`), nil
}

func validCalculateCommand() CalculateCommand {
	return CalculateCommand{
		Items: []domain.CartItem{
			{ProductID: 1, Name: "Widget", UnitPrice: 50, Quantity: 2},
		},
		Email: "shopper@example.com",
		ShippingAddress: &domain.Person{
			Name:        "Ada Shopper",
			Street:      "1 Ink St",
			City:        "Splatville",
			PostalCode:  "12345",
			CountryCode: "US",
		},
	}
}

func newCalculationService(t *testing.T, api commerceAPI) CalculationService {
	t.Helper()
	svc, err := NewCalculationService(CalculationServiceDeps{Commerce: api})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestCalculateRejectsBadInputBeforeNetwork(t *testing.T) {
	stub := &stubCommerce{}
	svc := newCalculationService(t, stub)

	cmd := validCalculateCommand()
	cmd.Email = "not-an-email"
	if _, err := svc.Calculate(context.Background(), cmd); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	cmd = validCalculateCommand()
	cmd.Items = nil
	if _, err := svc.Calculate(context.Background(), cmd); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	cmd = validCalculateCommand()
	cmd.ShippingAddress.PostalCode = ""
	if _, err := svc.Calculate(context.Background(), cmd); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if len(stub.postBodies) != 0 {
		t.Fatalf("expected no upstream calls, got %d", len(stub.postBodies))
	}
}

func TestCalculateReturnsTotalsAndOptions(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{[]byte(`{
		"subtotal": 100,
		"total": 118,
		"tax": 8,
		"availableShippingOptions": [
			{"shippingMethodId": "m1", "shippingMethodName": "Ground", "shippingCarrierName": "UPS", "shippingRate": 10},
			{"shippingMethodId": "m2", "shippingMethodName": "Express", "shippingCarrierName": "UPS", "shippingRate": 25}
		]
	}`)}}
	svc := newCalculationService(t, stub)

	result, err := svc.Calculate(context.Background(), validCalculateCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.ShippingOptions) != 2 {
		t.Fatalf("expected 2 options, got %d", len(result.ShippingOptions))
	}
	if result.DefaultOption == nil || result.DefaultOption.MethodID != "m1" {
		t.Fatalf("expected m1 pre-selected, got %+v", result.DefaultOption)
	}
	if result.Totals.Total != 118 {
		t.Fatalf("expected total 118, got %v", result.Totals.Total)
	}
	if result.Totals.Total != result.Totals.Subtotal+result.Totals.Shipping+result.Totals.Tax-result.Totals.Discount-result.Totals.CouponDiscount {
		t.Fatalf("totals invariant violated: %+v", result.Totals)
	}
	if !stub.postOpts[0].UsePublicToken {
		t.Fatalf("expected calculation to use the public token")
	}
}

func TestCalculateRequeriesSmallListWithRealIdentifier(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{
		[]byte(`{
			"subtotal": 100, "tax": 8,
			"availableShippingOptions": [
				{"shippingMethodId": "customShippingId", "shippingMethodName": "Shipping", "shippingRate": 0}
			]
		}`),
		[]byte(`{
			"subtotal": 100, "tax": 8,
			"availableShippingOptions": [
				{"shippingMethodId": "m1", "shippingMethodName": "Ground", "shippingCarrierName": "UPS", "shippingRate": 10},
				{"shippingMethodId": "m2", "shippingMethodName": "Express", "shippingCarrierName": "UPS", "shippingRate": 25}
			]
		}`),
	}}
	svc := newCalculationService(t, stub)

	result, err := svc.Calculate(context.Background(), validCalculateCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.postBodies) != 2 {
		t.Fatalf("expected second calculation call, got %d calls", len(stub.postBodies))
	}

	second, ok := stub.postBodies[1].(commerce.CalculateOrderRequest)
	if !ok {
		t.Fatalf("unexpected request type %T", stub.postBodies[1])
	}
	if second.ShippingOption == nil || second.ShippingOption.ID != "customShippingId" {
		t.Fatalf("expected second call to select customShippingId, got %+v", second.ShippingOption)
	}

	if len(result.ShippingOptions) != 2 {
		t.Fatalf("expected the larger option list, got %d", len(result.ShippingOptions))
	}
}

func TestCalculateSkipsRequeryForPlaceholderIdentifier(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{
		[]byte(`{
			"subtotal": 100, "tax": 8,
			"availableShippingOptions": [
				{"shippingMethodId": "CUSTOM_RATE-1", "shippingMethodName": "Custom", "shippingRate": 5}
			]
		}`),
	}}
	svc := newCalculationService(t, stub)

	result, err := svc.Calculate(context.Background(), validCalculateCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.postBodies) != 1 {
		t.Fatalf("expected a single calculation call, got %d", len(stub.postBodies))
	}
	if len(result.ShippingOptions) != 1 {
		t.Fatalf("expected 1 option, got %d", len(result.ShippingOptions))
	}
}

func TestCalculateKeepsFirstListWhenSecondIsNotLarger(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{
		[]byte(`{
			"subtotal": 100, "tax": 8,
			"availableShippingOptions": [
				{"shippingMethodId": "m1", "shippingMethodName": "Ground", "shippingCarrierName": "UPS", "shippingRate": 10}
			]
		}`),
		[]byte(`{
			"subtotal": 100, "tax": 8,
			"availableShippingOptions": [
				{"shippingMethodId": "m9", "shippingMethodName": "Other", "shippingRate": 99}
			]
		}`),
	}}
	svc := newCalculationService(t, stub)

	result, err := svc.Calculate(context.Background(), validCalculateCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ShippingOptions) != 1 || result.ShippingOptions[0].MethodID != "m1" {
		t.Fatalf("expected first list retained, got %+v", result.ShippingOptions)
	}
}

func TestCalculateSplicesAbsentDefaultOption(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{[]byte(`{
		"subtotal": 100, "tax": 8,
		"shippingOption": {"shippingMethodId": "pickup", "shippingMethodName": "Store pickup", "shippingRate": 0, "isPickup": true},
		"availableShippingOptions": [
			{"shippingMethodId": "m1", "shippingMethodName": "Ground", "shippingCarrierName": "UPS", "shippingRate": 10},
			{"shippingMethodId": "m2", "shippingMethodName": "Express", "shippingCarrierName": "UPS", "shippingRate": 25}
		]
	}`)}}
	svc := newCalculationService(t, stub)

	result, err := svc.Calculate(context.Background(), validCalculateCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.ShippingOptions) != 3 {
		t.Fatalf("expected default spliced in, got %d options", len(result.ShippingOptions))
	}
	if result.ShippingOptions[0].MethodID != "pickup" {
		t.Fatalf("expected default prepended, got %+v", result.ShippingOptions[0])
	}
}

func TestCalculateEmptyOptionsSurfacesDistinctError(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{[]byte(`{"subtotal": 100, "tax": 8}`)}}
	svc := newCalculationService(t, stub)

	_, err := svc.Calculate(context.Background(), validCalculateCommand())
	if !errors.Is(err, ErrNoShippingOptions) {
		t.Fatalf("expected ErrNoShippingOptions, got %v", err)
	}
}

func TestCalculateTranslatesUpstreamErrors(t *testing.T) {
	stub := &stubCommerce{postErrs: []error{&commerce.APIError{Status: 400, Body: "bad items"}}}
	svc := newCalculationService(t, stub)

	_, err := svc.Calculate(context.Background(), validCalculateCommand())
	if !errors.Is(err, ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}

	stub = &stubCommerce{postErrs: []error{&commerce.APIError{Status: 401}}}
	svc = newCalculationService(t, stub)
	if _, err := svc.Calculate(context.Background(), validCalculateCommand()); !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}

	stub = &stubCommerce{postErrs: []error{&commerce.APIError{Status: 503}}}
	svc = newCalculationService(t, stub)
	if _, err := svc.Calculate(context.Background(), validCalculateCommand()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestRecomputeTotalsAppliesNewRateLocally(t *testing.T) {
	baseline := domain.Totals{Subtotal: 100, Shipping: 10, Tax: 8, Total: 118}

	updated := RecomputeTotals(baseline, 0)
	if updated.Total != 108 {
		t.Fatalf("expected 108, got %v", updated.Total)
	}
	if updated.Shipping != 0 {
		t.Fatalf("expected shipping 0, got %v", updated.Shipping)
	}
	if updated.Tax != 8 || updated.Subtotal != 100 {
		t.Fatalf("baseline fields must not change: %+v", updated)
	}
}

func TestIsPlaceholderShippingOptionID(t *testing.T) {
	if IsPlaceholderShippingOptionID("customShippingId") {
		t.Fatalf("customShippingId is a real identifier")
	}
	if !IsPlaceholderShippingOptionID("CUSTOM_RATE-17") {
		t.Fatalf("CUSTOM_RATE identifiers are placeholders")
	}
}

func TestCalculateRequestIsWellFormed(t *testing.T) {
	stub := &stubCommerce{postResponses: [][]byte{[]byte(`{
		"subtotal": 100, "tax": 8,
		"availableShippingOptions": [
			{"shippingMethodId": "m1", "shippingMethodName": "Ground", "shippingCarrierName": "UPS", "shippingRate": 10},
			{"shippingMethodId": "m2", "shippingMethodName": "Express", "shippingCarrierName": "UPS", "shippingRate": 25}
		]
	}`)}}
	svc := newCalculationService(t, stub)

	cmd := validCalculateCommand()
	cmd.CouponCode = "LAUNCH10"
	if _, err := svc.Calculate(context.Background(), cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, ok := stub.postBodies[0].(commerce.CalculateOrderRequest)
	if !ok {
		t.Fatalf("unexpected request type %T", stub.postBodies[0])
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(encoded, &wire); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wire["couponCode"] != "LAUNCH10" {
		t.Fatalf("expected coupon code on the wire, got %v", wire["couponCode"])
	}
	if _, ok := wire["shippingOption"]; ok {
		t.Fatalf("no selection was made, shippingOption must be omitted")
	}
}
