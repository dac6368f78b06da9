package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/redisx"
	"storefront/internal/repository"
)

// CheckoutState is where a checkout attempt stands.
type CheckoutState string

const (
	StateDraft            CheckoutState = "Draft"
	StateIntentRequested  CheckoutState = "IntentRequested"
	StatePaymentConfirmed CheckoutState = "PaymentConfirmed"
	StateOrderPersisted   CheckoutState = "OrderPersisted"
	StateRejected         CheckoutState = "Rejected"
	StateFailed           CheckoutState = "Failed"
)

// CheckoutError reports the terminal state of an unsuccessful attempt.
type CheckoutError struct {
	State CheckoutState
	Err   error
}

func (e *CheckoutError) Error() string { return fmt.Sprintf("checkout %s: %v", e.State, e.Err) }
func (e *CheckoutError) Unwrap() error { return e.Err }

// CheckoutRequest is one attempt to turn cart lines into an order.
type CheckoutRequest struct {
	UserID          string
	ReceiptEmail    string
	Items           []cart.Item
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
	// PaymentMethodID is the gateway's payment method used to confirm the intent.
	PaymentMethodID string
	// IdempotencyKey, when set, makes a repeated attempt return the first order.
	IdempotencyKey string
}

type CheckoutResult struct {
	State    CheckoutState   `json:"state"`
	Order    *domain.Order   `json:"order"`
	Intent   *payment.Intent `json:"-"`
	Replayed bool            `json:"replayed,omitempty"`
}

type CheckoutOptions struct {
	// Gateway nil means orders are placed unpaid, without a payment confirmation.
	Gateway      payment.Gateway
	Idempotency  redisx.Idempotency
	Currency     string
	ReserveStock bool
	Logger       *slog.Logger
}

// CheckoutCoordinator drives a checkout attempt from cart to persisted order.
type CheckoutCoordinator struct {
	catalog *CatalogService
	orders  *OrderService
	opts    CheckoutOptions
	now     func() time.Time
}

func NewCheckoutCoordinator(catalog *CatalogService, orders *OrderService, opts CheckoutOptions) *CheckoutCoordinator {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &CheckoutCoordinator{catalog: catalog, orders: orders, opts: opts, now: time.Now}
}

// Secured reports whether checkouts go through a payment gateway.
func (c *CheckoutCoordinator) Secured() bool { return c.opts.Gateway != nil }

type attempt struct {
	req   CheckoutRequest
	state CheckoutState
	log   *slog.Logger
}

func (a *attempt) to(ctx context.Context, s CheckoutState) {
	a.state = s
	a.log.DebugContext(ctx, "checkout state", "state", s)
}

func (a *attempt) fail(ctx context.Context, s CheckoutState, err error) error {
	a.log.InfoContext(ctx, "checkout ended", "from", a.state, "state", s, "err", err)
	a.state = s
	return &CheckoutError{State: s, Err: err}
}

// Checkout runs one attempt. On success the caller clears the cart; on any error
// the cart is left as it was.
func (c *CheckoutCoordinator) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	a := &attempt{req: req, state: StateDraft, log: c.opts.Logger.With("user_id", req.UserID)}

	if err := validateCheckout(req); err != nil {
		// a retry of a placed order finds its cart already cleared
		if len(req.Items) == 0 {
			if res, ok := c.replay(ctx, a); ok {
				return res, nil
			}
		}
		return nil, a.fail(ctx, StateRejected, err)
	}
	if res, ok := c.replay(ctx, a); ok {
		return res, nil
	}
	lines := stockLines(req.Items)
	if err := c.checkStock(ctx, lines); err != nil {
		if isRejection(err) {
			return nil, a.fail(ctx, StateRejected, err)
		}
		return nil, a.fail(ctx, StateFailed, err)
	}

	var reservation *Reservation
	if c.opts.ReserveStock {
		r, err := c.catalog.ReserveStock(ctx, lines)
		if err != nil {
			if isRejection(err) {
				return nil, a.fail(ctx, StateRejected, err)
			}
			return nil, a.fail(ctx, StateFailed, err)
		}
		reservation = r
	}
	release := func() {
		if reservation == nil {
			return
		}
		// the attempt's ctx may already be done
		if err := reservation.Release(context.WithoutCancel(ctx)); err != nil {
			a.log.ErrorContext(ctx, "failed to release reserved stock, units stay reserved",
				"lines", lines, "err", err)
		}
	}

	order := buildOrder(req)
	res := &CheckoutResult{Order: order}

	if c.opts.Gateway != nil {
		intent, err := c.pay(ctx, a, order)
		if err != nil {
			release()
			return nil, a.fail(ctx, StateFailed, err)
		}
		res.Intent = intent
		paidAt := c.now().UTC()
		order.IsPaid, order.PaidAt = true, &paidAt
		order.PaymentResult = &domain.PaymentResult{
			ID:           intent.ID,
			Status:       intent.Status,
			UpdateTime:   paidAt.Format(time.RFC3339),
			EmailAddress: req.ReceiptEmail,
		}
	} else {
		a.log.WarnContext(ctx, "no payment gateway configured, placing unpaid order")
	}
	a.to(ctx, StatePaymentConfirmed)

	if err := c.orders.Place(ctx, order); err != nil {
		release()
		if res.Intent != nil {
			a.log.ErrorContext(ctx, "payment taken but order not stored", "intent_id", res.Intent.ID, "err", err)
		}
		return nil, a.fail(ctx, StateFailed, err)
	}
	a.to(ctx, StateOrderPersisted)
	res.State = StateOrderPersisted
	a.log.InfoContext(ctx, "order placed", "order_id", order.ID, "total", order.TotalPrice, "paid", order.IsPaid)

	if req.IdempotencyKey != "" && c.opts.Idempotency != nil {
		if err := c.opts.Idempotency.Remember(ctx, req.UserID, req.IdempotencyKey, order.ID); err != nil {
			a.log.WarnContext(ctx, "failed to remember idempotency key", "order_id", order.ID, "err", err)
		}
	}
	return res, nil
}

// CheckoutLedger checks out everything in l and clears it once the order is stored.
func (c *CheckoutCoordinator) CheckoutLedger(ctx context.Context, l *cart.Ledger, req CheckoutRequest) (*CheckoutResult, error) {
	req.Items = l.Items()
	res, err := c.Checkout(ctx, req)
	if err != nil || res.Replayed {
		return res, err
	}
	if err := l.Clear(ctx); err != nil {
		c.opts.Logger.WarnContext(ctx, "order placed but cart not cleared", "order_id", res.Order.ID, "err", err)
	}
	return res, nil
}

func (c *CheckoutCoordinator) replay(ctx context.Context, a *attempt) (*CheckoutResult, bool) {
	if a.req.IdempotencyKey == "" || c.opts.Idempotency == nil {
		return nil, false
	}
	id, err := c.opts.Idempotency.Lookup(ctx, a.req.UserID, a.req.IdempotencyKey)
	if err != nil {
		a.log.WarnContext(ctx, "idempotency lookup failed", "err", err)
		return nil, false
	}
	if id == "" {
		return nil, false
	}
	o, err := c.orders.GetByID(ctx, id)
	if err != nil {
		a.log.WarnContext(ctx, "idempotency key points at a missing order", "order_id", id, "err", err)
		return nil, false
	}
	a.log.InfoContext(ctx, "replayed checkout", "order_id", id)
	return &CheckoutResult{State: StateOrderPersisted, Order: o, Replayed: true}, true
}

func (c *CheckoutCoordinator) pay(ctx context.Context, a *attempt, o *domain.Order) (*payment.Intent, error) {
	a.to(ctx, StateIntentRequested)
	intent, err := c.opts.Gateway.CreateIntent(ctx, payment.IntentRequest{
		Amount:        payment.MinorUnits(decimal.NewFromFloat(o.TotalPrice)),
		Currency:      c.opts.Currency,
		ReceiptEmail:  a.req.ReceiptEmail,
		Metadata:      map[string]string{"user_id": a.req.UserID},
		ServerConfirm: true,
	})
	if err != nil {
		return nil, err
	}
	confirmed, err := c.opts.Gateway.Confirm(ctx, intent.ID, a.req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if !confirmed.Succeeded() {
		return nil, &payment.GatewayError{Code: confirmed.Status, Message: "payment was not completed"}
	}
	return confirmed, nil
}

func validateCheckout(req CheckoutRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity < 1 || it.Price < 0 {
			return fmt.Errorf("%w: bad cart line %q", domain.ErrValidation, it.ProductID)
		}
	}
	return validateShipping(req.ShippingAddress)
}

// checkStock compares each line with current stock. It reserves nothing.
func (c *CheckoutCoordinator) checkStock(ctx context.Context, lines []domain.StockLine) error {
	for _, l := range lines {
		p, err := c.catalog.GetByID(ctx, l.ProductID)
		if err != nil {
			return fmt.Errorf("product %s: %w", l.ProductID, err)
		}
		if p.Stock < l.Quantity {
			return fmt.Errorf("%s: only %d left: %w", p.Name, p.Stock, domain.ErrInsufficientStock)
		}
	}
	return nil
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrValidation)
}

func stockLines(items []cart.Item) []domain.StockLine {
	byID := make(map[string]int, len(items))
	lines := make([]domain.StockLine, 0, len(items))
	for _, it := range items {
		if i, ok := byID[it.ProductID]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		byID[it.ProductID] = len(lines)
		lines = append(lines, domain.StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

// buildOrder copies the cart lines so later catalog changes never reach the order.
func buildOrder(req CheckoutRequest) *domain.Order {
	o := &domain.Order{
		UserID:          req.UserID,
		Items:           make([]domain.OrderItem, 0, len(req.Items)),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = DefaultPaymentMethod
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
	}
	price(o, decimal.Zero, decimal.Zero)
	return o
}
