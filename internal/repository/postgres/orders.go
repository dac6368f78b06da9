package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// OrderStore keeps orders in the primary store. Line items, the shipping address
// and the payment result are JSONB documents.
type OrderStore struct{ DB *pgxpool.Pool }

func NewOrderStore(db *pgxpool.Pool) *OrderStore { return &OrderStore{DB: db} }

var _ repository.OrderRepository = (*OrderStore)(nil)

const orderColumns = `id, user_id, items, shipping_address, payment_method, items_price, tax_price,
	shipping_price, total_price, is_paid, paid_at, payment_result, is_delivered, delivered_at, created_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                   domain.Order
		items, ship, result []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &items, &ship, &o.PaymentMethod, &o.ItemsPrice, &o.TaxPrice,
		&o.ShippingPrice, &o.TotalPrice, &o.IsPaid, &o.PaidAt, &result, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(ship, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if len(result) > 0 {
		o.PaymentResult = &domain.PaymentResult{}
		if err := json.Unmarshal(result, o.PaymentResult); err != nil {
			return nil, fmt.Errorf("decode payment result: %w", err)
		}
	}
	return &o, nil
}

type orderDocs struct {
	items, ship, result []byte
}

func encodeOrder(o *domain.Order) (orderDocs, error) {
	var d orderDocs
	var err error
	if d.items, err = json.Marshal(o.Items); err != nil {
		return d, err
	}
	if d.ship, err = json.Marshal(o.ShippingAddress); err != nil {
		return d, err
	}
	if o.PaymentResult != nil {
		if d.result, err = json.Marshal(o.PaymentResult); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	d, err := encodeOrder(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.UserID, d.items, d.ship, o.PaymentMethod, o.ItemsPrice, o.TaxPrice,
		o.ShippingPrice, o.TotalPrice, o.IsPaid, o.PaidAt, d.result, o.IsDelivered, o.DeliveredAt, o.CreatedAt)
	return classify("create order", err)
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get order", err)
	}
	return o, nil
}

func (s *OrderStore) list(ctx context.Context, op, sql string, args ...any) ([]domain.Order, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *o)
	}
	return out, classify(op, rows.Err())
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.list(ctx, "list orders by user",
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *OrderStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.list(ctx, "list orders", `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// Update rewrites the mutable fulfilment fields. Items and prices are frozen at creation.
func (s *OrderStore) Update(ctx context.Context, o *domain.Order) error {
	d, err := encodeOrder(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET is_paid = $2, paid_at = $3, payment_result = $4, is_delivered = $5, delivered_at = $6
		WHERE id = $1`,
		o.ID, o.IsPaid, o.PaidAt, d.result, o.IsDelivered, o.DeliveredAt)
	if err != nil {
		return classify("update order", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
