package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/splat-labs/storefront/internal/commerce"
	"github.com/splat-labs/storefront/internal/domain"
)

const calculateEndpoint = "order/calculate"

// placeholderShippingMarker identifies synthetic shipping option identifiers
// the platform fabricates when no concrete option was supplied in the
// request. Such identifiers cannot be echoed back in a follow-up call.
const placeholderShippingMarker = "CUSTOM_RATE"

// freeShippingCarrierPlaceholder is the carrier name the platform reports for
// its built-in free shipping method.
const freeShippingCarrierPlaceholder = "Free shipping"

// IsPlaceholderShippingOptionID reports whether the identifier is a synthetic
// placeholder rather than a real shipping method reference.
func IsPlaceholderShippingOptionID(id string) bool {
	return strings.Contains(id, placeholderShippingMarker)
}

// CalculationServiceDeps wires the dependencies required by the calculation service.
type CalculationServiceDeps struct {
	Commerce commerceAPI
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type calculationService struct {
	commerce commerceAPI
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCalculationService constructs a CalculationService validating required dependencies.
func NewCalculationService(deps CalculationServiceDeps) (CalculationService, error) {
	if deps.Commerce == nil {
		return nil, errors.New("calculation service: commerce client is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &calculationService{
		commerce: deps.Commerce,
		logger:   logger,
	}, nil
}

// Calculate requests totals and shipping options from the commerce platform.
//
// The platform returns an artificially small option list when the request
// carries no shipping selection, sometimes just a synthetic placeholder. When
// that happens and the list contains at least one real identifier, a second
// call is issued selecting that identifier, and its list is preferred only if
// strictly larger.
func (s *calculationService) Calculate(ctx context.Context, cmd CalculateCommand) (CalculationResult, error) {
	if err := validateItems(cmd.Items); err != nil {
		return CalculationResult{}, err
	}
	if err := validateEmail(cmd.Email); err != nil {
		return CalculationResult{}, err
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return CalculationResult{}, err
	}

	req := s.buildRequest(cmd)
	resp, err := s.calculate(ctx, req)
	if err != nil {
		return CalculationResult{}, err
	}

	hasSelection := strings.TrimSpace(cmd.SelectedShippingID) != "" || strings.TrimSpace(cmd.SelectedShippingName) != ""
	if !hasSelection {
		if retry, ok := retryCandidate(resp.AvailableShippingOptions); ok {
			req.ShippingOption = &commerce.SelectedShippingPayload{
				ID:   retry.ShippingMethodID,
				Name: retry.ShippingMethodName,
			}
			second, err := s.calculate(ctx, req)
			if err != nil {
				return CalculationResult{}, err
			}
			if len(second.AvailableShippingOptions) > len(resp.AvailableShippingOptions) {
				s.logger(ctx, "checkout.calculate.requery", map[string]any{
					"firstCount":  len(resp.AvailableShippingOptions),
					"secondCount": len(second.AvailableShippingOptions),
					"selectedId":  retry.ShippingMethodID,
				})
				resp = second
			}
		}
	}

	options := commerce.ShippingOptionsFromPayload(resp.AvailableShippingOptions)
	if resp.ShippingOption != nil {
		options = spliceDefaultOption(options, commerce.ShippingOptionFromPayload(*resp.ShippingOption))
	}
	if len(options) == 0 {
		return CalculationResult{}, ErrNoShippingOptions
	}

	defaultOption := chooseDefaultOption(options)

	totals := domain.Totals{
		Subtotal:       resp.Subtotal,
		Shipping:       defaultOption.Rate,
		Tax:            resp.Tax,
		Discount:       resp.Discount,
		CouponDiscount: resp.CouponDiscount,
	}
	totals.Total = totals.Subtotal + totals.Shipping + totals.Tax - totals.Discount - totals.CouponDiscount

	return CalculationResult{
		Totals:          totals,
		ShippingOptions: options,
		DefaultOption:   &defaultOption,
	}, nil
}

func (s *calculationService) buildRequest(cmd CalculateCommand) commerce.CalculateOrderRequest {
	req := commerce.CalculateOrderRequest{
		Items:           commerce.ItemPayloads(cmd.Items),
		Email:           strings.TrimSpace(cmd.Email),
		ShippingAddress: commerce.AddressPayload(cmd.ShippingAddress),
		BillingAddress:  commerce.AddressPayload(cmd.BillingAddress),
		CouponCode:      strings.TrimSpace(cmd.CouponCode),
	}
	if cmd.SelectedShippingID != "" || cmd.SelectedShippingName != "" {
		req.ShippingOption = &commerce.SelectedShippingPayload{
			ID:   cmd.SelectedShippingID,
			Name: cmd.SelectedShippingName,
		}
	}
	return req
}

func (s *calculationService) calculate(ctx context.Context, req commerce.CalculateOrderRequest) (commerce.CalculateOrderResponse, error) {
	body, err := s.commerce.Post(ctx, calculateEndpoint, req, commerce.PostOptions{UsePublicToken: true})
	if err != nil {
		return commerce.CalculateOrderResponse{}, translateCommerceError(err)
	}

	var resp commerce.CalculateOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return commerce.CalculateOrderResponse{}, fmt.Errorf("%w: decode calculation response: %v", ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

// retryCandidate returns the first non-placeholder option of an artificially
// small list, signalling that a second calculation call should be issued.
func retryCandidate(options []commerce.ShippingOptionPayload) (commerce.ShippingOptionPayload, bool) {
	if len(options) >= 2 {
		return commerce.ShippingOptionPayload{}, false
	}
	for _, opt := range options {
		if !IsPlaceholderShippingOptionID(opt.ShippingMethodID) {
			return opt, true
		}
	}
	return commerce.ShippingOptionPayload{}, false
}

// spliceDefaultOption prepends the platform-chosen default when it does not
// appear in the list by identifier or name.
func spliceDefaultOption(options []domain.ShippingOption, def domain.ShippingOption) []domain.ShippingOption {
	for _, opt := range options {
		if opt.MethodID != "" && opt.MethodID == def.MethodID {
			return options
		}
		if opt.MethodName != "" && strings.EqualFold(opt.MethodName, def.MethodName) {
			return options
		}
	}
	return append([]domain.ShippingOption{def}, options...)
}

// chooseDefaultOption picks the option to pre-select. Prefers the first
// option with a real carrier name, falling back to the first in the list.
func chooseDefaultOption(options []domain.ShippingOption) domain.ShippingOption {
	for _, opt := range options {
		if opt.CarrierName != "" && !strings.EqualFold(opt.CarrierName, freeShippingCarrierPlaceholder) {
			return opt
		}
	}
	return options[0]
}

// RecomputeTotals applies a new shipping rate to an existing totals baseline
// without another calculation call. Re-sending a different shipping
// identifier to the platform can make it report that option as unavailable,
// and tax does not depend on the shipping method in this model.
func RecomputeTotals(totals domain.Totals, rate float64) domain.Totals {
	totals.Shipping = rate
	totals.Total = totals.Subtotal + rate + totals.Tax - totals.Discount - totals.CouponDiscount
	return totals
}
