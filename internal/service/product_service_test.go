package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func setupCatalog(t *testing.T, primary repository.ProductRepository) (*CatalogService, *repository.MemoryCatalog) {
	t.Helper()
	snapshot := repository.NewMemoryCatalog(repository.SampleProducts()...)
	return NewCatalogService(repository.NewFailover(primary, repository.ProductRepository(snapshot), quietLogger())), snapshot
}

func TestCatalog_Create_Valid(t *testing.T) {
	cs, _ := setupCatalog(t, repository.NewMemoryCatalog())
	p, err := cs.Create(context.Background(), domain.Product{ID: "ignored", Name: "Lamp", Price: 30, Stock: 4})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", p.ID)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestCatalog_Create_Invalid(t *testing.T) {
	cs, _ := setupCatalog(t, repository.NewMemoryCatalog())
	for _, p := range []domain.Product{
		{Name: "", Price: 1, Stock: 1},
		{Name: "N", Price: -1, Stock: 1},
		{Name: "N", Price: 1, Stock: -1},
		{Name: "N", Price: 1, Stock: 1, Rating: -2},
	} {
		_, err := cs.Create(context.Background(), p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestCatalog_Update_Get_Delete(t *testing.T) {
	ctx := context.Background()
	cs, _ := setupCatalog(t, repository.NewMemoryCatalog())
	p, err := cs.Create(ctx, domain.Product{Name: "A", Price: 10, Stock: 5, Category: "Other"})
	require.NoError(t, err)

	price := 12.5
	up, err := cs.Update(ctx, p.ID, domain.ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 12.5, up.Price)
	assert.Equal(t, "A", up.Name)
	assert.Equal(t, "Other", up.Category)
	assert.True(t, up.CreatedAt.Equal(p.CreatedAt))

	stock := -1
	_, err = cs.Update(ctx, p.ID, domain.ProductPatch{Stock: &stock})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := cs.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Price)

	require.NoError(t, cs.Delete(ctx, p.ID))
	_, err = cs.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, cs.Delete(ctx, p.ID), repository.ErrNotFound)
	_, err = cs.Update(ctx, p.ID, domain.ProductPatch{Price: &price})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCatalog_PaginationSweep(t *testing.T) {
	ctx := context.Background()
	cs, _ := setupCatalog(t, repository.NewMemoryCatalog(repository.SampleProducts()...))

	for _, limit := range []int{1, 3, 4, 12} {
		first, err := cs.Query(ctx, CatalogQuery{Pagination: repository.Pagination{Page: 1, Limit: limit}})
		require.NoError(t, err)
		assert.Equal(t, 10, first.Total)
		assert.Equal(t, (first.Total+limit-1)/limit, first.Pages)

		seen := 0
		for page := 1; page <= first.Pages; page++ {
			res, err := cs.Query(ctx, CatalogQuery{Pagination: repository.Pagination{Page: page, Limit: limit}})
			require.NoError(t, err)
			seen += len(res.Products)
		}
		assert.Equal(t, first.Total, seen, "limit %d", limit)
	}
}

func TestCatalog_QueryDefaults(t *testing.T) {
	cs, _ := setupCatalog(t, repository.NewMemoryCatalog(repository.SampleProducts()...))
	res, err := cs.Query(context.Background(), CatalogQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Len(t, res.Products, 10)
	assert.Equal(t, "p10", res.Products[0].ID)

	lo, hi := 100.0, 50.0
	_, err = cs.Query(context.Background(), CatalogQuery{Filter: repository.ProductFilter{MinPrice: &lo, MaxPrice: &hi}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCatalog_FallbackIsIndistinguishable(t *testing.T) {
	ctx := context.Background()
	healthy, _ := setupCatalog(t, repository.NewMemoryCatalog(repository.SampleProducts()...))
	degraded, _ := setupCatalog(t, downCatalog{})

	queries := []CatalogQuery{
		{},
		{Filter: repository.ProductFilter{Keyword: "steel"}},
		{Filter: repository.ProductFilter{Category: "Sports"}, Sort: repository.Sort{Field: repository.SortPrice}},
		{Sort: repository.Sort{Field: repository.SortName, Desc: true}, Pagination: repository.Pagination{Page: 2, Limit: 4}},
	}
	for _, q := range queries {
		want, err := healthy.Query(ctx, q)
		require.NoError(t, err)
		got, err := degraded.Query(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	featured, err := degraded.Featured(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(featured), repository.FeaturedLimit)
	for _, p := range featured {
		assert.True(t, p.Featured)
	}
}

func TestCatalog_WritesDuringOutageHitSnapshot(t *testing.T) {
	ctx := context.Background()
	cs, snapshot := setupCatalog(t, downCatalog{})

	p, err := cs.Create(ctx, domain.Product{Name: "Outage Special", Price: 1, Stock: 1})
	require.NoError(t, err)
	_, err = snapshot.GetByID(ctx, p.ID)
	assert.NoError(t, err)
}

func TestCatalog_NoFallbackSurfacesOutage(t *testing.T) {
	cs := NewCatalogService(repository.NewFailover[repository.ProductRepository](downCatalog{}, nil, quietLogger()))
	_, err := cs.Featured(context.Background())
	assert.True(t, repository.IsConnectivity(err))
}

func TestCatalog_ReleaseStaysOnReservingBackend(t *testing.T) {
	ctx := context.Background()
	w := domain.Product{ID: "w", Name: "Widget", Price: 19.99, Stock: 5}
	primary := &droppingCatalog{MemoryCatalog: repository.NewMemoryCatalog(w)}
	snapshot := repository.NewMemoryCatalog(w)
	cs := NewCatalogService(repository.NewFailover[repository.ProductRepository](primary, snapshot, quietLogger()))

	res, err := cs.ReserveStock(ctx, []domain.StockLine{{ProductID: "w", Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, primary.MemoryCatalog, "w"))

	// primary drops before the release: nothing lands on the snapshot
	primary.down.Store(true)
	err = res.Release(ctx)
	assert.True(t, repository.IsConnectivity(err))
	assert.Equal(t, 2, stockOf(t, primary.MemoryCatalog, "w"))
	assert.Equal(t, 5, stockOf(t, snapshot, "w"))

	primary.down.Store(false)
	require.NoError(t, res.Release(ctx))
	assert.Equal(t, 5, stockOf(t, primary.MemoryCatalog, "w"))

	// taken from the snapshot during an outage, returned there after recovery
	primary.down.Store(true)
	res, err = cs.ReserveStock(ctx, []domain.StockLine{{ProductID: "w", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 4, stockOf(t, snapshot, "w"))
	primary.down.Store(false)
	require.NoError(t, res.Release(ctx))
	assert.Equal(t, 5, stockOf(t, snapshot, "w"))
	assert.Equal(t, 5, stockOf(t, primary.MemoryCatalog, "w"))
}
