package services

import (
	"errors"
	"fmt"

	"github.com/splat-labs/storefront/internal/commerce"
)

var (
	// ErrInvalidInput indicates the caller supplied missing or malformed fields.
	ErrInvalidInput = errors.New("services: invalid input")
	// ErrUpstreamRejected indicates the commerce platform rejected the request data.
	ErrUpstreamRejected = errors.New("services: upstream rejected request")
	// ErrUpstreamAuth indicates our commerce platform credentials were refused.
	ErrUpstreamAuth = errors.New("services: upstream authorization failed")
	// ErrUpstreamUnavailable indicates the commerce platform failed or was unreachable.
	ErrUpstreamUnavailable = errors.New("services: upstream unavailable")
	// ErrNoShippingOptions indicates no delivery method serves the given address.
	ErrNoShippingOptions = errors.New("services: no shipping options available")
)

// translateCommerceError maps transport-level failures onto the service error
// taxonomy while preserving the original detail for logs.
func translateCommerceError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *commerce.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsBadRequest():
			return fmt.Errorf("%w: %s", ErrUpstreamRejected, apiErr.Body)
		case apiErr.IsUnauthorized():
			return fmt.Errorf("%w: status %d", ErrUpstreamAuth, apiErr.Status)
		default:
			return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, apiErr.Status)
		}
	}

	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
