package domain

import "strconv"

// SelectedOption captures a single product option choice made by the shopper.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CartItem is a single purchasable line held by the cart store. Items are
// keyed by (ProductID, CombinationID); adding the same key again merges
// quantities.
type CartItem struct {
	ProductID        int64            `json:"productId"`
	CombinationID    int64            `json:"combinationId,omitempty"`
	SKU              string           `json:"sku,omitempty"`
	Name             string           `json:"name"`
	UnitPrice        float64          `json:"unitPrice"`
	Quantity         int              `json:"quantity"`
	SelectedOptions  []SelectedOption `json:"selectedOptions,omitempty"`
	Weight           float64          `json:"weight,omitempty"`
	ShippingRequired bool             `json:"shippingRequired"`
}

// Key returns the identity used to merge cart lines.
func (i CartItem) Key() string {
	return strconv.FormatInt(i.ProductID, 10) + ":" + strconv.FormatInt(i.CombinationID, 10)
}

// Person is a postal address record used for shipping and billing. It is
// held in checkout state only and never persisted server-side.
type Person struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Street      string `json:"street"`
	City        string `json:"city"`
	Region      string `json:"region,omitempty"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone,omitempty"`
}

// ShippingOption describes a delivery method quoted by the commerce platform
// for a specific calculation call. Identifiers are not stable across calls.
type ShippingOption struct {
	MethodID             string  `json:"methodId"`
	MethodName           string  `json:"methodName"`
	CarrierName          string  `json:"carrierName,omitempty"`
	Rate                 float64 `json:"rate"`
	EstimatedTransitTime string  `json:"estimatedTransitTime,omitempty"`
	IsPickup             bool    `json:"isPickup,omitempty"`
	PickupInstruction    string  `json:"pickupInstruction,omitempty"`
}

// Totals carries the monetary breakdown of a calculation. Amounts are major
// currency units as reported by the commerce platform.
//
// Invariant: Total = Subtotal + Shipping + Tax - Discount - CouponDiscount.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	Shipping       float64 `json:"shipping"`
	Tax            float64 `json:"tax"`
	Discount       float64 `json:"discount"`
	CouponDiscount float64 `json:"couponDiscount"`
	Total          float64 `json:"total"`
}

// PaymentStatus enumerates the external order payment states this system
// observes or requests. The state machine itself is owned by the platform.
type PaymentStatus string

const (
	// PaymentStatusAwaiting is the initial state of every order created here.
	PaymentStatusAwaiting PaymentStatus = "AWAITING_PAYMENT"
	// PaymentStatusPaid is set via the payment webhook after confirmation.
	PaymentStatusPaid PaymentStatus = "PAID"
	// PaymentStatusCancelled is set on explicit cancel or session expiry.
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// FulfillmentStatus enumerates the fulfillment states this system sets.
type FulfillmentStatus string

// FulfillmentAwaitingProcessing is the only fulfillment state written here.
const FulfillmentAwaitingProcessing FulfillmentStatus = "AWAITING_PROCESSING"
