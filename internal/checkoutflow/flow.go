// Package checkoutflow drives the three-step checkout wizard as an explicit
// state machine: address, shipping, review. Transitions are guarded by pure
// predicates over the collected form data.
package checkoutflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/splat-labs/storefront/internal/analytics"
	"github.com/splat-labs/storefront/internal/cartstore"
	"github.com/splat-labs/storefront/internal/domain"
	"github.com/splat-labs/storefront/internal/services"
)

// Step names a state of the checkout wizard.
type Step string

const (
	// StepAddress collects contact and shipping details.
	StepAddress Step = "address"
	// StepShipping picks one of the quoted delivery options.
	StepShipping Step = "shipping"
	// StepReview shows the final totals before submission.
	StepReview Step = "review"
)

var (
	// ErrInvalidTransition indicates the requested step change is not allowed
	// from the current state.
	ErrInvalidTransition = errors.New("checkoutflow: invalid transition")
	// ErrUnknownOption indicates the selected shipping option is not in the
	// quoted list.
	ErrUnknownOption = errors.New("checkoutflow: unknown shipping option")
)

// State is a snapshot of the wizard's collected data.
type State struct {
	Step            Step
	Email           string
	ShippingAddress *domain.Person
	BillingAddress  *domain.Person
	CouponCode      string
	Options         []domain.ShippingOption
	Selected        *domain.ShippingOption
	Totals          domain.Totals
}

// CanEnterShipping reports whether the address step has produced everything
// the shipping step needs.
func CanEnterShipping(s State) bool {
	return s.ShippingAddress != nil && strings.TrimSpace(s.Email) != "" && len(s.Options) > 0
}

// CanEnterReview reports whether a shipping option has been chosen.
func CanEnterReview(s State) bool {
	return CanEnterShipping(s) && s.Selected != nil
}

// Deps wires the collaborators the flow drives.
type Deps struct {
	Cart       *cartstore.Store
	Calculator services.CalculationService
	Checkout   services.CheckoutService
	Analytics  analytics.Emitter
}

// Flow is a single shopper's progression through checkout.
type Flow struct {
	mu         sync.Mutex
	state      State
	cart       *cartstore.Store
	calculator services.CalculationService
	checkout   services.CheckoutService
	analytics  analytics.Emitter
}

// NewFlow constructs a Flow starting at the address step.
func NewFlow(deps Deps) (*Flow, error) {
	if deps.Cart == nil {
		return nil, errors.New("checkoutflow: cart store is required")
	}
	if deps.Calculator == nil {
		return nil, errors.New("checkoutflow: calculation service is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("checkoutflow: checkout service is required")
	}

	emitter := deps.Analytics
	if emitter == nil {
		emitter = analytics.NoopEmitter{}
	}

	return &Flow{
		state:      State{Step: StepAddress},
		cart:       deps.Cart,
		calculator: deps.Calculator,
		checkout:   deps.Checkout,
		analytics:  emitter,
	}, nil
}

// State returns a copy of the current wizard state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() State {
	s := f.state
	s.Options = append([]domain.ShippingOption(nil), f.state.Options...)
	if f.state.Selected != nil {
		selected := *f.state.Selected
		s.Selected = &selected
	}
	return s
}

// SubmitAddress validates the address by running a calculation and, on
// success, advances to the shipping step with the quoted options. When no
// option serves the address, the flow stays on the address step so the
// shopper can correct it.
func (f *Flow) SubmitAddress(ctx context.Context, email string, shipping, billing *domain.Person, coupon string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Step == StepReview {
		return fmt.Errorf("%w: cannot edit address from %s", ErrInvalidTransition, f.state.Step)
	}

	result, err := f.calculator.Calculate(ctx, services.CalculateCommand{
		Items:           f.cart.Items(),
		Email:           email,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		CouponCode:      coupon,
	})
	if err != nil {
		return err
	}

	f.state.Email = email
	f.state.ShippingAddress = shipping
	f.state.BillingAddress = billing
	f.state.CouponCode = coupon
	f.state.Options = result.ShippingOptions
	f.state.Selected = result.DefaultOption
	f.state.Totals = result.Totals
	f.state.Step = StepShipping

	f.analytics.Emit(ctx, "checkout.address_submitted", map[string]any{
		"optionCount": len(result.ShippingOptions),
	})
	return nil
}

// SelectShipping chooses one of the quoted options and recomputes totals
// locally. No calculation call is made; the quoted identifiers are not
// stable across calls and re-sending one can make the platform drop it.
func (f *Flow) SelectShipping(ctx context.Context, methodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Step != StepShipping && f.state.Step != StepReview {
		return fmt.Errorf("%w: cannot select shipping from %s", ErrInvalidTransition, f.state.Step)
	}

	for i := range f.state.Options {
		if f.state.Options[i].MethodID != methodID {
			continue
		}
		selected := f.state.Options[i]
		f.state.Selected = &selected
		f.state.Totals = services.RecomputeTotals(f.state.Totals, selected.Rate)
		f.analytics.Emit(ctx, "checkout.shipping_selected", map[string]any{
			"methodId": selected.MethodID,
			"rate":     selected.Rate,
		})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownOption, methodID)
}

// ContinueToReview advances to the review step once an option is selected.
func (f *Flow) ContinueToReview() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Step != StepShipping {
		return fmt.Errorf("%w: cannot review from %s", ErrInvalidTransition, f.state.Step)
	}
	if !CanEnterReview(f.snapshotLocked()) {
		return fmt.Errorf("%w: shipping option not selected", ErrInvalidTransition)
	}
	f.state.Step = StepReview
	return nil
}

// Back moves one step towards the address step. Collected data is kept.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state.Step {
	case StepReview:
		f.state.Step = StepShipping
	case StepShipping:
		f.state.Step = StepAddress
	}
}

// Submit creates the external order and the payment session, then clears the
// cart. The caller must hard-navigate the browser to the returned URL.
func (f *Flow) Submit(ctx context.Context, comments string) (services.CheckoutSessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state.Step != StepReview {
		return services.CheckoutSessionResult{}, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, f.state.Step)
	}

	result, err := f.checkout.CreateCheckoutSession(ctx, services.CheckoutSessionCommand{
		Items:           f.cart.Items(),
		Email:           f.state.Email,
		ShippingAddress: f.state.ShippingAddress,
		BillingAddress:  f.state.BillingAddress,
		ShippingOption:  f.state.Selected,
		Totals:          f.state.Totals,
		CouponCode:      f.state.CouponCode,
		Comments:        comments,
	})
	if err != nil {
		return services.CheckoutSessionResult{}, err
	}

	if err := f.cart.Clear(ctx); err != nil {
		// The order and session exist; an unclearable cart is not worth
		// failing the submission over.
		f.analytics.Emit(ctx, "checkout.cart_clear_failed", map[string]any{
			"orderId": result.OrderID,
		})
	}

	f.analytics.Emit(ctx, "checkout.submitted", map[string]any{
		"orderId":     result.OrderID,
		"orderNumber": result.OrderNumber,
	})
	return result, nil
}

// Abandon reports that the shopper left checkout before submitting. No order
// exists at this point, so the only effect is an analytics signal.
func (f *Flow) Abandon(ctx context.Context) {
	f.mu.Lock()
	step := f.state.Step
	f.mu.Unlock()

	f.analytics.Emit(ctx, "checkout.abandoned", map[string]any{
		"step": string(step),
	})
}
