package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CatalogService serves the catalog from the primary store, or from the in-memory
// snapshot while the primary is unreachable.
type CatalogService struct {
	backends *repository.Failover[repository.ProductRepository]
}

func NewCatalogService(backends *repository.Failover[repository.ProductRepository]) *CatalogService {
	return &CatalogService{backends: backends}
}

// CatalogQuery is a parsed product listing request.
type CatalogQuery struct {
	Filter     repository.ProductFilter
	Sort       repository.Sort
	Pagination repository.Pagination
}

// CatalogPage is one page of a listing.
type CatalogPage struct {
	Products []domain.Product `json:"products"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
	Total    int              `json:"total"`
}

// Query returns a page plus totals. Page and count come from the same backend.
func (s *CatalogService) Query(ctx context.Context, q CatalogQuery) (*CatalogPage, error) {
	if q.Sort.Field == "" {
		q.Sort = repository.DefaultSort
	}
	if q.Filter.MinPrice != nil && q.Filter.MaxPrice != nil && *q.Filter.MinPrice > *q.Filter.MaxPrice {
		return nil, fmt.Errorf("%w: minPrice is greater than maxPrice", domain.ErrValidation)
	}
	q.Pagination = q.Pagination.Normalize()
	return repository.Try(ctx, s.backends, "catalog.query",
		func(ctx context.Context, r repository.ProductRepository) (*CatalogPage, error) {
			total, err := r.Count(ctx, q.Filter)
			if err != nil {
				return nil, err
			}
			products, err := r.Query(ctx, q.Filter, q.Sort, q.Pagination)
			if err != nil {
				return nil, err
			}
			return &CatalogPage{
				Products: products,
				Page:     q.Pagination.Page,
				Pages:    repository.Pages(total, q.Pagination.Limit),
				Total:    total,
			}, nil
		})
}

func (s *CatalogService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrValidation
	}
	return repository.Try(ctx, s.backends, "catalog.get",
		func(ctx context.Context, r repository.ProductRepository) (*domain.Product, error) {
			return r.GetByID(ctx, id)
		})
}

// Featured returns up to repository.FeaturedLimit featured products.
func (s *CatalogService) Featured(ctx context.Context) ([]domain.Product, error) {
	return repository.Try(ctx, s.backends, "catalog.featured",
		func(ctx context.Context, r repository.ProductRepository) ([]domain.Product, error) {
			return r.ListFeatured(ctx, repository.FeaturedLimit)
		})
}

func validateProduct(p domain.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	case p.Price < 0:
		return fmt.Errorf("%w: price must be >= 0", domain.ErrValidation)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must be >= 0", domain.ErrValidation)
	case p.Rating < 0 || p.NumReviews < 0:
		return fmt.Errorf("%w: rating and numReviews must be >= 0", domain.ErrValidation)
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID, p.CreatedAt = "", time.Time{}
	return repository.Try(ctx, s.backends, "catalog.create",
		func(ctx context.Context, r repository.ProductRepository) (*domain.Product, error) {
			cp := p
			if err := r.Create(ctx, &cp); err != nil {
				return nil, err
			}
			return &cp, nil
		})
}

// Update applies patch to the stored product.
func (s *CatalogService) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	return repository.Try(ctx, s.backends, "catalog.update",
		func(ctx context.Context, r repository.ProductRepository) (*domain.Product, error) {
			cur, err := r.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			next := patch.Apply(*cur)
			if err := validateProduct(next); err != nil {
				return nil, err
			}
			if err := r.Update(ctx, &next); err != nil {
				return nil, err
			}
			return &next, nil
		})
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	return repository.Exec(ctx, s.backends, "catalog.delete",
		func(ctx context.Context, r repository.ProductRepository) error {
			return r.Delete(ctx, id)
		})
}

// Reservation is stock taken by ReserveStock.
type Reservation struct {
	backend repository.ProductRepository
	lines   []domain.StockLine
}

// Release puts the stock back on the backend that took it. It never fails over.
func (r *Reservation) Release(ctx context.Context) error {
	return r.backend.ReleaseStock(ctx, r.lines)
}

// ReserveStock takes lines out of stock, all or nothing.
func (s *CatalogService) ReserveStock(ctx context.Context, lines []domain.StockLine) (*Reservation, error) {
	return repository.Try(ctx, s.backends, "catalog.reserve_stock",
		func(ctx context.Context, r repository.ProductRepository) (*Reservation, error) {
			if err := r.ReserveStock(ctx, lines); err != nil {
				return nil, err
			}
			return &Reservation{backend: r, lines: slices.Clone(lines)}, nil
		})
}
