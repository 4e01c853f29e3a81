package domain

// CheckoutState is one step of the checkout protocol. Forward transitions
// are driven by explicit user confirmation; back-transitions to any earlier
// state are always permitted and must not discard data for steps not being
// redone.
type CheckoutState string

const (
	StateCollectingAddress CheckoutState = "collecting_address"
	StateCollectingPayment CheckoutState = "collecting_payment"
	StateReviewingOrder    CheckoutState = "reviewing_order"
	StatePlacingOrder      CheckoutState = "placing_order"
	StatePlaced            CheckoutState = "placed"
	StatePlacementFailed   CheckoutState = "placement_failed"
)

// checkoutOrder gives each state its position in the forward flow.
// Terminal/outcome states sit past the review step.
var checkoutOrder = map[CheckoutState]int{
	StateCollectingAddress: 0,
	StateCollectingPayment: 1,
	StateReviewingOrder:    2,
	StatePlacingOrder:      3,
	StatePlaced:            4,
	StatePlacementFailed:   4,
}

// CheckoutAttempt carries the state machine for one checkout plus the data
// entered at each step. Going back re-opens a step without clearing what
// was entered at the others.
type CheckoutAttempt struct {
	State     CheckoutState
	Address   *ShippingAddress
	Payment   string // PaymentMethodCOD | PaymentMethodGateway
	PromoCode string
}

// NewCheckoutAttempt starts a checkout at the address step.
func NewCheckoutAttempt() *CheckoutAttempt {
	return &CheckoutAttempt{State: StateCollectingAddress}
}

// SubmitAddress records the shipping address and advances to payment
// selection. Permitted from the address step or any later non-terminal step
// (redoing the step keeps other data).
func (a *CheckoutAttempt) SubmitAddress(addr ShippingAddress) error {
	if a.terminal() {
		return Invalid("checkout.address", "checkout already completed")
	}
	a.Address = &addr
	a.State = StateCollectingPayment
	return nil
}

// SubmitPayment records the payment method and advances to review.
func (a *CheckoutAttempt) SubmitPayment(method string) error {
	if a.terminal() {
		return Invalid("checkout.payment", "checkout already completed")
	}
	if a.Address == nil {
		return Invalid("checkout.payment", "shipping address is required first")
	}
	if method != PaymentMethodCOD && method != PaymentMethodGateway {
		return Errorf(EINVALID, "checkout.payment", "unknown payment method: %s", method)
	}
	a.Payment = method
	a.State = StateReviewingOrder
	return nil
}

// BeginPlacement moves from review into placement. Only valid once address
// and payment are present.
func (a *CheckoutAttempt) BeginPlacement() error {
	if a.State != StateReviewingOrder && a.State != StatePlacementFailed {
		return Invalid("checkout.place", "order must be reviewed before placement")
	}
	if a.Address == nil || a.Payment == "" {
		return Invalid("checkout.place", "address and payment method are required")
	}
	a.State = StatePlacingOrder
	return nil
}

// Complete marks the attempt placed.
func (a *CheckoutAttempt) Complete() { a.State = StatePlaced }

// Fail marks placement failed. The attempt stays resumable: entered data is
// retained and BeginPlacement may be called again.
func (a *CheckoutAttempt) Fail() { a.State = StatePlacementFailed }

// Back returns to an earlier step. Data entered at steps not being redone
// is kept.
func (a *CheckoutAttempt) Back(to CheckoutState) error {
	if a.State == StatePlaced {
		return Invalid("checkout.back", "checkout already completed")
	}
	toPos, ok := checkoutOrder[to]
	if !ok || to == StatePlacingOrder || to == StatePlaced || to == StatePlacementFailed {
		return Errorf(EINVALID, "checkout.back", "cannot go back to state: %s", to)
	}
	if toPos >= checkoutOrder[a.State] {
		return Errorf(EINVALID, "checkout.back", "%s is not an earlier step", to)
	}
	a.State = to
	return nil
}

func (a *CheckoutAttempt) terminal() bool {
	return a.State == StatePlaced
}
