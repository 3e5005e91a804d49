package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/splat-labs/storefront/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return nil
}

func validateShippingAddress(person *domain.Person) error {
	if person == nil {
		return fmt.Errorf("%w: shipping address is required", ErrInvalidInput)
	}

	var missing []string
	if strings.TrimSpace(person.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(person.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(person.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(person.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if strings.TrimSpace(person.CountryCode) == "" {
		missing = append(missing, "countryCode")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func validateItems(items []domain.CartItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}
	for _, item := range items {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: item has no product id", ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrInvalidInput)
		}
	}
	return nil
}
