package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"
)

// DefaultPaymentMethod is recorded when the client does not name one.
const DefaultPaymentMethod = "stripe"

// OrderService persists orders and enforces who may see or change them.
type OrderService struct {
	orders   repository.OrderRepository
	creds    *CredentialStore
	events   events.Publisher
	producer string
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrderService(orders repository.OrderRepository, creds *CredentialStore, pub events.Publisher, producer string, logger *slog.Logger) *OrderService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{orders: orders, creds: creds, events: pub, producer: producer, logger: logger, now: time.Now}
}

// CreateOrderInput is a client-built order. Items and total prices are recomputed
// from the line snapshots; only tax and shipping are taken as given.
type CreateOrderInput struct {
	Items           []domain.OrderItem     `json:"orderItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	TaxPrice        float64                `json:"taxPrice"`
	ShippingPrice   float64                `json:"shippingPrice"`
}

func validateItems(items []domain.OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no order items", domain.ErrValidation)
	}
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || it.Price < 0 {
			return fmt.Errorf("%w: bad order item %q", domain.ErrValidation, it.ProductID)
		}
	}
	return nil
}

func validateShipping(a domain.ShippingAddress) error {
	if missing := a.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: shipping address is missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// price fills the order's money fields so that items = sum(price x qty) and
// total = items + tax + shipping, each rounded to cents.
func price(o *domain.Order, tax, shipping decimal.Decimal) {
	items := decimal.Zero
	for _, it := range o.Items {
		items = items.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	items = items.Round(2)
	tax, shipping = tax.Round(2), shipping.Round(2)
	o.ItemsPrice = items.InexactFloat64()
	o.TaxPrice = tax.InexactFloat64()
	o.ShippingPrice = shipping.InexactFloat64()
	o.TotalPrice = items.Add(tax).Add(shipping).InexactFloat64()
}

// Create places a client-built order for userID.
func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (*domain.Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	if err := validateShipping(in.ShippingAddress); err != nil {
		return nil, err
	}
	if in.TaxPrice < 0 || in.ShippingPrice < 0 {
		return nil, fmt.Errorf("%w: tax and shipping must be >= 0", domain.ErrValidation)
	}
	o := &domain.Order{
		UserID:          userID,
		Items:           append([]domain.OrderItem(nil), in.Items...),
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = DefaultPaymentMethod
	}
	price(o, decimal.NewFromFloat(in.TaxPrice), decimal.NewFromFloat(in.ShippingPrice))
	if err := s.Place(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Place persists a fully built order and announces it.
func (s *OrderService) Place(ctx context.Context, o *domain.Order) error {
	if err := s.orders.Create(ctx, o); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	s.publish(ctx, events.TopicOrderPlaced, o)
	return nil
}

// Authorize allows admins everything and users only their own orders.
func Authorize(who *domain.Identity, o *domain.Order) error {
	if who == nil {
		return domain.ErrUnauthorized
	}
	if who.IsAdmin() || o.UserID == who.ID {
		return nil
	}
	return fmt.Errorf("%w: not authorized to access this order", domain.ErrForbidden)
}

// Get returns the order with its owner populated, if who may see it.
func (s *OrderService) Get(ctx context.Context, who *domain.Identity, id string) (*domain.Order, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(who, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByID loads an order and attaches its owner's public fields.
func (s *OrderService) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.populateOwner(ctx, o)
	return o, nil
}

func (s *OrderService) populateOwner(ctx context.Context, o *domain.Order) {
	o.User = &domain.OrderOwner{ID: o.UserID}
	if s.creds == nil {
		return
	}
	i, err := s.creds.LookupByID(ctx, o.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to load order owner", "order_id", o.ID, "user_id", o.UserID, "err", err)
		}
		return
	}
	o.User.Name, o.User.Email = i.Name, i.Email
}

// ListByUser returns the user's orders, newest first.
func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAll(ctx)
}

// MarkPaid records a gateway confirmation on an order who may access.
func (s *OrderService) MarkPaid(ctx context.Context, who *domain.Identity, id string, result domain.PaymentResult) (*domain.Order, error) {
	o, err := s.Get(ctx, who, id)
	if err != nil {
		return nil, err
	}
	paidAt := s.now().UTC()
	o.IsPaid, o.PaidAt, o.PaymentResult = true, &paidAt, &result
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicOrderPaid, o)
	return o, nil
}

// MarkDelivered flags an order as delivered. Callers restrict this to admins.
func (s *OrderService) MarkDelivered(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	o.IsDelivered, o.DeliveredAt = true, &at
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TopicOrderDelivered, o)
	return o, nil
}

type orderEvent struct {
	OrderID    string             `json:"orderId"`
	UserID     string             `json:"userId"`
	Items      []domain.OrderItem `json:"orderItems"`
	TotalPrice float64            `json:"totalPrice"`
	IsPaid     bool               `json:"isPaid"`
}

// publish is best effort: a lost event never fails the order.
func (s *OrderService) publish(ctx context.Context, topic string, o *domain.Order) {
	env, err := events.NewEnvelope(s.producer, topic, o.ID, orderEvent{
		OrderID: o.ID, UserID: o.UserID, Items: o.Items, TotalPrice: o.TotalPrice, IsPaid: o.IsPaid,
	})
	if err == nil {
		err = s.events.Publish(ctx, env)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish order event", "topic", topic, "order_id", o.ID, "err", err)
	}
}
