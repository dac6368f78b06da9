package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// MemoryCatalog is an in-memory catalog that keeps products in insertion order.
// It serves as the catalog fallback over a fixed snapshot and as a test double.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products []domain.Product
}

// NewMemoryCatalog returns a catalog holding a copy of seed, in order.
func NewMemoryCatalog(seed ...domain.Product) *MemoryCatalog {
	return &MemoryCatalog{products: slices.Clone(seed)}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryCatalog)(nil)

func (m *MemoryCatalog) indexOf(id string) int {
	return slices.IndexFunc(m.products, func(p domain.Product) bool { return p.ID == id })
}

func (m *MemoryCatalog) filtered(f ProductFilter) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range m.products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *MemoryCatalog) Query(_ context.Context, f ProductFilter, s Sort, p Pagination) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.filtered(f)
	slices.SortStableFunc(list, compareBy(s))

	p = p.Normalize()
	start := min(p.Offset(), len(list))
	end := min(start+p.Limit, len(list))
	return list[start:end], nil
}

func (m *MemoryCatalog) Count(_ context.Context, f ProductFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filtered(f)), nil
}

func (m *MemoryCatalog) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	// return copy
	cp := m.products[i]
	return &cp, nil
}

func (m *MemoryCatalog) Create(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.products = append(m.products, *p)
	return nil
}

func (m *MemoryCatalog) Update(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(p.ID)
	if i < 0 {
		return ErrNotFound
	}
	p.CreatedAt = m.products[i].CreatedAt
	m.products[i] = *p
	return nil
}

func (m *MemoryCatalog) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.products = slices.Delete(m.products, i, i+1)
	return nil
}

// ListFeatured returns featured products in insertion order.
func (m *MemoryCatalog) ListFeatured(_ context.Context, limit int) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0, limit)
	for _, p := range m.products {
		if len(out) == limit {
			break
		}
		if p.Featured {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryCatalog) ReserveStock(_ context.Context, lines []domain.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// check everything first so a shortfall leaves stock untouched
	for _, l := range lines {
		i := m.indexOf(l.ProductID)
		if i < 0 {
			return fmt.Errorf("product %s: %w", l.ProductID, ErrNotFound)
		}
		if m.products[i].Stock < l.Quantity {
			return fmt.Errorf("product %s: %w", l.ProductID, domain.ErrInsufficientStock)
		}
	}
	for _, l := range lines {
		m.products[m.indexOf(l.ProductID)].Stock -= l.Quantity
	}
	return nil
}

func (m *MemoryCatalog) ReleaseStock(_ context.Context, lines []domain.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		if i := m.indexOf(l.ProductID); i >= 0 {
			m.products[i].Stock += l.Quantity
		}
	}
	return nil
}

func compareBy(s Sort) func(a, b domain.Product) int {
	var key func(a, b domain.Product) int
	switch s.Field {
	case SortPrice:
		key = func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) }
	case SortName:
		key = func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) }
	case SortRating:
		key = func(a, b domain.Product) int { return cmp.Compare(a.Rating, b.Rating) }
	case SortStock:
		key = func(a, b domain.Product) int { return cmp.Compare(a.Stock, b.Stock) }
	case SortNumReviews:
		key = func(a, b domain.Product) int { return cmp.Compare(a.NumReviews, b.NumReviews) }
	default:
		key = func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	if s.Desc {
		return func(a, b domain.Product) int { return key(b, a) }
	}
	return key
}

// MemoryOrders is an in-memory OrderRepository.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders []domain.Order
}

func NewMemoryOrders() *MemoryOrders { return &MemoryOrders{} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(_ context.Context, o *domain.Order) error {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	mo.orders = append(mo.orders, cloneOrder(*o))
	return nil
}

func (mo *MemoryOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	for _, o := range mo.orders {
		if o.ID == id {
			cp := cloneOrder(o)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mo *MemoryOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	out := make([]domain.Order, 0)
	for i := len(mo.orders) - 1; i >= 0; i-- {
		if mo.orders[i].UserID == userID {
			out = append(out, cloneOrder(mo.orders[i]))
		}
	}
	return out, nil
}

func (mo *MemoryOrders) ListAll(_ context.Context) ([]domain.Order, error) {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	out := make([]domain.Order, 0, len(mo.orders))
	for i := len(mo.orders) - 1; i >= 0; i-- {
		out = append(out, cloneOrder(mo.orders[i]))
	}
	return out, nil
}

func (mo *MemoryOrders) Update(_ context.Context, o *domain.Order) error {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	for i := range mo.orders {
		if mo.orders[i].ID == o.ID {
			mo.orders[i] = cloneOrder(*o)
			return nil
		}
	}
	return ErrNotFound
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	o.User = nil
	return o
}
