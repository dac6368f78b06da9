package repository

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = domain.ErrNotFound

// ProductFilter narrows a catalog query. Zero values match everything.
type ProductFilter struct {
	Keyword  string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// SortField names a sortable product attribute, using the public JSON field names.
type SortField string

const (
	SortCreatedAt  SortField = "createdAt"
	SortPrice      SortField = "price"
	SortName       SortField = "name"
	SortRating     SortField = "rating"
	SortStock      SortField = "stock"
	SortNumReviews SortField = "numReviews"
)

var sortFields = map[SortField]bool{
	SortCreatedAt:  true,
	SortPrice:      true,
	SortName:       true,
	SortRating:     true,
	SortStock:      true,
	SortNumReviews: true,
}

// Sort orders a catalog query. Equal keys keep insertion order.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: SortCreatedAt, Desc: true}

// ParseSort builds a Sort from query parameters. Empty values fall back to DefaultSort.
func ParseSort(field, order string) (Sort, error) {
	s := DefaultSort
	if field != "" {
		s.Field = SortField(field)
		if !sortFields[s.Field] {
			return Sort{}, fmt.Errorf("%w: unknown sort field %q", domain.ErrValidation, field)
		}
	}
	switch strings.ToLower(order) {
	case "":
	case "asc":
		s.Desc = false
	case "desc":
		s.Desc = true
	default:
		return Sort{}, fmt.Errorf("%w: order must be asc or desc", domain.ErrValidation)
	}
	return s, nil
}

const (
	DefaultLimit = 12
	MaxLimit     = 100
)

// Pagination is 1-based.
type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit into their valid ranges.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset of the first record of the page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }

// Pages returns ceil(total / limit).
func Pages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// FeaturedLimit caps ListFeatured.
const FeaturedLimit = 8

// ProductRepository stores the catalog.
type ProductRepository interface {
	Query(ctx context.Context, f ProductFilter, s Sort, p Pagination) ([]domain.Product, error)
	Count(ctx context.Context, f ProductFilter) (int, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	ListFeatured(ctx context.Context, limit int) ([]domain.Product, error)
	// ReserveStock decrements stock for every line or for none of them.
	ReserveStock(ctx context.Context, lines []domain.StockLine) error
	ReleaseStock(ctx context.Context, lines []domain.StockLine) error
}

// IdentityRepository stores accounts. Email lookups are case-insensitive.
type IdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	Update(ctx context.Context, i *domain.Identity) error
}

// OrderRepository stores orders.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Matches reports whether p satisfies the filter.
func (f ProductFilter) Matches(p domain.Product) bool {
	if f.Keyword != "" && !containsIgnoreCase(p.Name, f.Keyword) && !containsIgnoreCase(p.Description, f.Keyword) {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}
