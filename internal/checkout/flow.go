package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Flow is one checkout attempt. Operations on a flow do not overlap; a call
// made while another is running fails with apperr.ErrBusy.
type Flow struct {
	id     string
	svc    *Service
	userID domain.UserID

	opMu sync.Mutex

	mu       sync.RWMutex
	step     Step
	shipping ShippingInfo
	method   PaymentMethod
	order    *domain.Order
	payment  *domain.PaymentSession
	lastErr  error
}

// State is a read-only copy of a flow.
type State struct {
	ID       string                 `json:"id"`
	Step     Step                   `json:"step"`
	Shipping ShippingInfo           `json:"shipping"`
	Method   PaymentMethod          `json:"payment_method"`
	Order    *domain.Order          `json:"order,omitempty"`
	Payment  *domain.PaymentSession `json:"payment,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func (f *Flow) ID() string { return f.id }

func (f *Flow) Step() Step {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.step
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st := State{ID: f.id, Step: f.step, Shipping: f.shipping, Method: f.method, Payment: f.payment}
	if f.order != nil {
		o := *f.order
		st.Order = &o
	}
	if f.lastErr != nil {
		st.Error = apperr.Message(f.lastErr)
	}
	return st
}

// OrderID is set once the order has been created.
func (f *Flow) OrderID() (domain.OrderID, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.order == nil {
		return 0, false
	}
	return f.order.ID, true
}

func (f *Flow) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// begin claims the flow for one operation and checks it is at step want.
func (f *Flow) begin(op string, want Step) error {
	if !f.opMu.TryLock() {
		return &apperr.CheckoutError{Op: op, Err: apperr.ErrBusy}
	}
	if cur := f.Step(); cur != want {
		f.opMu.Unlock()
		return &apperr.CheckoutError{Op: op, Err: fmt.Errorf("%w: %s from %s", ErrIllegalTransition, op, cur)}
	}
	return nil
}

func (f *Flow) fail(ctx context.Context, op string, err error) error {
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
	f.svc.log.WarnContext(ctx, "checkout step failed", "checkout_id", f.id, "op", op, "error", err)
	return &apperr.CheckoutError{Op: op, Err: err}
}

// advance is the only way a flow changes step. It records reason as the
// flow's error, nil clearing it, and refuses moves CanTransitionTo rejects.
func (f *Flow) advance(ctx context.Context, op string, next Step, reason error) error {
	f.mu.Lock()
	prev := f.step
	if !CanTransitionTo(prev, next) {
		f.mu.Unlock()
		return &apperr.CheckoutError{Op: op, Err: fmt.Errorf("%w: %s to %s", ErrIllegalTransition, prev, next)}
	}
	f.step = next
	f.lastErr = reason
	f.mu.Unlock()
	f.svc.log.DebugContext(ctx, "checkout step", "checkout_id", f.id, "from", prev, "to", next)
	if next.IsTerminal() {
		f.svc.metrics.CheckoutOutcome(ctx, next.String())
	}
	return nil
}

func (f *Flow) abort(ctx context.Context, op string, err error) error {
	if terr := f.advance(ctx, op, StepAborted, err); terr != nil {
		return terr
	}
	f.svc.log.InfoContext(ctx, "checkout aborted", "checkout_id", f.id, "reason", err)
	return &apperr.CheckoutError{Op: op, Err: err}
}

// preOrderCheck aborts the flow when the cart emptied or the shopper signed
// out before the order was placed.
func (f *Flow) preOrderCheck(ctx context.Context, op string) error {
	if _, placed := f.OrderID(); placed {
		return nil
	}
	if f.svc.session.User() == nil {
		return f.abort(ctx, op, apperr.ErrLoginRequired)
	}
	if f.svc.cart.Snapshot().Empty() {
		return f.abort(ctx, op, apperr.ErrEmptyCart)
	}
	return nil
}

// SubmitShipping validates the shipping details and moves on to payment
// method selection. Nothing is sent to the server.
func (f *Flow) SubmitShipping(ctx context.Context, info ShippingInfo) error {
	const op = "submit shipping"
	if err := f.begin(op, StepShippingInfo); err != nil {
		return err
	}
	defer f.opMu.Unlock()

	if err := f.preOrderCheck(ctx, op); err != nil {
		return err
	}
	if info.Country == "" {
		info.Country = f.svc.cfg.Country
	}
	if err := info.Validate(); err != nil {
		return f.fail(ctx, op, err)
	}

	f.mu.Lock()
	f.shipping = info
	f.mu.Unlock()
	return f.advance(ctx, op, StepPaymentMethod, nil)
}

// SubmitPaymentMethod places the order and opens a payment session for it.
// When the order was placed but the session could not be opened, a retry
// reuses the order.
func (f *Flow) SubmitPaymentMethod(ctx context.Context, method PaymentMethod) error {
	const op = "submit payment method"
	if err := f.begin(op, StepPaymentMethod); err != nil {
		return err
	}
	defer f.opMu.Unlock()

	if !method.Valid() {
		return f.fail(ctx, op, &apperr.ValidationError{Field: "payment_method", Message: "Unsupported payment method"})
	}
	if err := f.preOrderCheck(ctx, op); err != nil {
		return err
	}

	f.mu.Lock()
	f.method = method
	order, shipping := f.order, f.shipping
	f.mu.Unlock()

	if order == nil {
		created, err := f.svc.orders.CreateOrder(ctx, shipping.FormatAddress(), f.id)
		if err != nil {
			return f.fail(ctx, op, err)
		}
		f.mu.Lock()
		f.order = created
		f.mu.Unlock()
		order = created
		f.svc.log.InfoContext(ctx, "order placed", "checkout_id", f.id, "order_id", order.ID, "total", order.TotalAmount)
	}

	payment, err := f.svc.orders.CreatePaymentSession(ctx, order.ID)
	if err != nil {
		return f.fail(ctx, op, err)
	}

	f.mu.Lock()
	f.payment = payment
	f.mu.Unlock()
	return f.advance(ctx, op, StepConfirmation, nil)
}

// Back returns from payment method selection to shipping details. It is
// refused once an order exists.
func (f *Flow) Back(ctx context.Context) error {
	const op = "back"
	if err := f.begin(op, StepPaymentMethod); err != nil {
		return err
	}
	defer f.opMu.Unlock()

	if _, placed := f.OrderID(); placed {
		return &apperr.CheckoutError{Op: op, Err: ErrBackAfterOrder}
	}
	return f.advance(ctx, op, StepShippingInfo, nil)
}

// Abort abandons the flow. An order already placed stays pending on the
// server.
func (f *Flow) Abort(ctx context.Context) error {
	if !f.opMu.TryLock() {
		return &apperr.CheckoutError{Op: "abort", Err: apperr.ErrBusy}
	}
	defer f.opMu.Unlock()
	if err := f.advance(ctx, "abort", StepAborted, nil); err != nil {
		return err
	}
	f.svc.log.InfoContext(ctx, "checkout aborted", "checkout_id", f.id)
	return nil
}

// Pay opens the gateway. If the shopper pays, the result is verified as by
// CompletePayment. If the gateway fails or is dismissed the flow stays at
// confirmation so the caller can offer another attempt.
func (f *Flow) Pay(ctx context.Context, gw Gateway) error {
	const op = "pay"
	if err := f.begin(op, StepConfirmation); err != nil {
		return err
	}
	defer f.opMu.Unlock()

	res, err := gw.Open(ctx, f.GatewayOptions())
	if err != nil {
		return f.fail(ctx, op, fmt.Errorf("%w: %w", ErrPaymentFailed, err))
	}
	return f.verify(ctx, res)
}

// CompletePayment verifies a result the gateway reported out of band.
func (f *Flow) CompletePayment(ctx context.Context, res domain.PaymentResult) error {
	if err := f.begin("complete payment", StepConfirmation); err != nil {
		return err
	}
	defer f.opMu.Unlock()
	return f.verify(ctx, res)
}

// verify has the server check the gateway signature. A rejected payment
// ends the flow; the cart is only cleared once the payment is confirmed.
func (f *Flow) verify(ctx context.Context, res domain.PaymentResult) error {
	const op = "verify payment"
	f.mu.RLock()
	orderID := f.order.ID
	f.mu.RUnlock()

	paid, err := f.svc.orders.VerifyPayment(ctx, domain.PaymentVerification{PaymentResult: res, OrderID: orderID})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPaymentVerification, err)
		if terr := f.advance(ctx, op, StepPaymentFailed, err); terr != nil {
			return terr
		}
		f.svc.log.ErrorContext(ctx, "payment verification failed", "checkout_id", f.id, "order_id", orderID, "error", err)
		return &apperr.CheckoutError{Op: op, Err: err}
	}

	if err := f.svc.cart.Clear(ctx); err != nil {
		f.svc.log.WarnContext(ctx, "failed to clear cart after payment", "checkout_id", f.id, "error", err)
	}

	f.mu.Lock()
	f.order = paid
	f.mu.Unlock()
	if err := f.advance(ctx, op, StepSuccess, nil); err != nil {
		return err
	}
	f.svc.log.InfoContext(ctx, "order paid", "checkout_id", f.id, "order_id", orderID, "payment_id", res.GatewayPaymentID)
	return nil
}
