package commerce

import (
	"encoding/json"

	"github.com/splat-labs/storefront/internal/domain"
)

// OrderItemPayload is the wire form of a cart line sent to the platform.
type OrderItemPayload struct {
	ProductID       int64                   `json:"productId"`
	CombinationID   int64                   `json:"combinationId,omitempty"`
	SKU             string                  `json:"sku,omitempty"`
	Name            string                  `json:"name,omitempty"`
	Price           float64                 `json:"price"`
	Quantity        int                     `json:"quantity"`
	SelectedOptions []SelectedOptionPayload `json:"selectedOptions,omitempty"`
	Weight          float64                 `json:"weight,omitempty"`
}

// SelectedOptionPayload is the wire form of a product option choice.
type SelectedOptionPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PersonPayload is the wire form of a postal address.
type PersonPayload struct {
	Name                string `json:"name"`
	CompanyName         string `json:"companyName,omitempty"`
	Street              string `json:"street"`
	City                string `json:"city"`
	StateOrProvinceCode string `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string `json:"postalCode"`
	CountryCode         string `json:"countryCode"`
	Phone               string `json:"phone,omitempty"`
}

// ShippingOptionPayload is the wire form of a quoted shipping method.
type ShippingOptionPayload struct {
	ShippingMethodID     string  `json:"shippingMethodId"`
	ShippingMethodName   string  `json:"shippingMethodName"`
	ShippingCarrierName  string  `json:"shippingCarrierName,omitempty"`
	ShippingRate         float64 `json:"shippingRate"`
	EstimatedTransitTime string  `json:"estimatedTransitTime,omitempty"`
	IsPickup             bool    `json:"isPickup,omitempty"`
	PickupInstruction    string  `json:"pickupInstruction,omitempty"`
}

// SelectedShippingPayload names the shipping choice inside a calculate or
// create request.
type SelectedShippingPayload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// DiscountInfoPayload describes a single automatic discount applied by the
// platform during calculation.
type DiscountInfoPayload struct {
	Value       float64 `json:"value"`
	Type        string  `json:"type,omitempty"`
	Base        string  `json:"base,omitempty"`
	Description string  `json:"description,omitempty"`
}

// CalculateOrderRequest is the payload for the order calculation endpoint.
type CalculateOrderRequest struct {
	Items           []OrderItemPayload       `json:"items"`
	Email           string                   `json:"email,omitempty"`
	ShippingAddress *PersonPayload           `json:"shippingAddress,omitempty"`
	BillingAddress  *PersonPayload           `json:"billingAddress,omitempty"`
	ShippingOption  *SelectedShippingPayload `json:"shippingOption,omitempty"`
	CouponCode      string                   `json:"couponCode,omitempty"`
}

// CalculateOrderResponse is the platform's calculation result.
type CalculateOrderResponse struct {
	Subtotal                 float64                 `json:"subtotal"`
	Total                    float64                 `json:"total"`
	Tax                      float64                 `json:"tax"`
	Discount                 float64                 `json:"discount,omitempty"`
	CouponDiscount           float64                 `json:"couponDiscount,omitempty"`
	DiscountInfo             []DiscountInfoPayload   `json:"discountInfo,omitempty"`
	AvailableShippingOptions []ShippingOptionPayload `json:"availableShippingOptions,omitempty"`
	ShippingOption           *ShippingOptionPayload  `json:"shippingOption,omitempty"`
}

// CreateOrderRequest is the payload for order creation.
type CreateOrderRequest struct {
	Items             []OrderItemPayload       `json:"items"`
	Email             string                   `json:"email"`
	ShippingAddress   *PersonPayload           `json:"shippingAddress,omitempty"`
	BillingAddress    *PersonPayload           `json:"billingAddress,omitempty"`
	ShippingOption    *SelectedShippingPayload `json:"shippingOption,omitempty"`
	CouponCode        string                   `json:"couponCode,omitempty"`
	Subtotal          float64                  `json:"subtotal,omitempty"`
	Total             float64                  `json:"total,omitempty"`
	Tax               float64                  `json:"tax,omitempty"`
	PaymentStatus     string                   `json:"paymentStatus"`
	FulfillmentStatus string                   `json:"fulfillmentStatus"`
	OrderComments     string                   `json:"orderComments,omitempty"`
}

// CreateOrderResponse identifies a newly created order.
type CreateOrderResponse struct {
	ID          int64  `json:"id"`
	OrderNumber int64  `json:"orderNumber"`
	PaymentURL  string `json:"paymentUrl,omitempty"`
}

// OrderUpdatePayload mutates an existing order. Zero-valued fields are
// omitted from the wire payload.
type OrderUpdatePayload struct {
	PaymentStatus         string `json:"paymentStatus,omitempty"`
	FulfillmentStatus     string `json:"fulfillmentStatus,omitempty"`
	ExternalTransactionID string `json:"externalTransactionId,omitempty"`
	PrivateAdminNotes     string `json:"privateAdminNotes,omitempty"`
}

// WebhookEvent is the envelope delivered by the platform's webhook system.
type WebhookEvent struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	StoreID   int64           `json:"storeId"`
	EntityID  int64           `json:"entityId"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ItemPayload converts a domain cart line to its wire form.
func ItemPayload(item domain.CartItem) OrderItemPayload {
	payload := OrderItemPayload{
		ProductID:     item.ProductID,
		CombinationID: item.CombinationID,
		SKU:           item.SKU,
		Name:          item.Name,
		Price:         item.UnitPrice,
		Quantity:      item.Quantity,
		Weight:        item.Weight,
	}
	for _, opt := range item.SelectedOptions {
		payload.SelectedOptions = append(payload.SelectedOptions, SelectedOptionPayload{
			Name:  opt.Name,
			Value: opt.Value,
		})
	}
	return payload
}

// ItemPayloads converts a slice of domain cart lines.
func ItemPayloads(items []domain.CartItem) []OrderItemPayload {
	out := make([]OrderItemPayload, 0, len(items))
	for _, item := range items {
		out = append(out, ItemPayload(item))
	}
	return out
}

// AddressPayload converts a domain address to its wire form. Returns nil for
// a zero-valued address.
func AddressPayload(person *domain.Person) *PersonPayload {
	if person == nil {
		return nil
	}
	return &PersonPayload{
		Name:                person.Name,
		CompanyName:         person.Company,
		Street:              person.Street,
		City:                person.City,
		StateOrProvinceCode: person.Region,
		PostalCode:          person.PostalCode,
		CountryCode:         person.CountryCode,
		Phone:               person.Phone,
	}
}

// ShippingOptionFromPayload converts a quoted option into its domain form.
func ShippingOptionFromPayload(payload ShippingOptionPayload) domain.ShippingOption {
	return domain.ShippingOption{
		MethodID:             payload.ShippingMethodID,
		MethodName:           payload.ShippingMethodName,
		CarrierName:          payload.ShippingCarrierName,
		Rate:                 payload.ShippingRate,
		EstimatedTransitTime: payload.EstimatedTransitTime,
		IsPickup:             payload.IsPickup,
		PickupInstruction:    payload.PickupInstruction,
	}
}

// ShippingOptionsFromPayload converts a quoted option list.
func ShippingOptionsFromPayload(payloads []ShippingOptionPayload) []domain.ShippingOption {
	out := make([]domain.ShippingOption, 0, len(payloads))
	for _, payload := range payloads {
		out = append(out, ShippingOptionFromPayload(payload))
	}
	return out
}
