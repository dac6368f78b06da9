package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/repository/sqlite"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var errRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func unreachable(op string) error { return &repository.ConnectivityError{Op: op, Err: errRefused} }

// downIdentities is a primary identity store that cannot be reached.
type downIdentities struct{}

func (downIdentities) FindByEmail(context.Context, string) (*domain.Identity, error) {
	return nil, unreachable("find by email")
}
func (downIdentities) FindByID(context.Context, string) (*domain.Identity, error) {
	return nil, unreachable("find by id")
}
func (downIdentities) Create(context.Context, *domain.Identity) error { return unreachable("create") }
func (downIdentities) Update(context.Context, *domain.Identity) error { return unreachable("update") }

// downCatalog is a primary catalog that cannot be reached.
type downCatalog struct{}

func (downCatalog) Query(context.Context, repository.ProductFilter, repository.Sort, repository.Pagination) ([]domain.Product, error) {
	return nil, unreachable("query")
}
func (downCatalog) Count(context.Context, repository.ProductFilter) (int, error) {
	return 0, unreachable("count")
}
func (downCatalog) GetByID(context.Context, string) (*domain.Product, error) {
	return nil, unreachable("get")
}
func (downCatalog) Create(context.Context, *domain.Product) error { return unreachable("create") }
func (downCatalog) Update(context.Context, *domain.Product) error { return unreachable("update") }
func (downCatalog) Delete(context.Context, string) error          { return unreachable("delete") }
func (downCatalog) ListFeatured(context.Context, int) ([]domain.Product, error) {
	return nil, unreachable("featured")
}
func (downCatalog) ReserveStock(context.Context, []domain.StockLine) error {
	return unreachable("reserve")
}
func (downCatalog) ReleaseStock(context.Context, []domain.StockLine) error {
	return unreachable("release")
}

// droppingCatalog is a working primary catalog that can be taken offline.
type droppingCatalog struct {
	*repository.MemoryCatalog
	down atomic.Bool
}

func (d *droppingCatalog) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if d.down.Load() {
		return nil, unreachable("get")
	}
	return d.MemoryCatalog.GetByID(ctx, id)
}

func (d *droppingCatalog) ReserveStock(ctx context.Context, lines []domain.StockLine) error {
	if d.down.Load() {
		return unreachable("reserve")
	}
	return d.MemoryCatalog.ReserveStock(ctx, lines)
}

func (d *droppingCatalog) ReleaseStock(ctx context.Context, lines []domain.StockLine) error {
	if d.down.Load() {
		return unreachable("release")
	}
	return d.MemoryCatalog.ReleaseStock(ctx, lines)
}

func stockOf(t *testing.T, r repository.ProductRepository, id string) int {
	t.Helper()
	p, err := r.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// openFallback opens a bootstrapped sqlite credential store in a temp dir.
func openFallback(t *testing.T) *sqlite.IdentityStore {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "fallback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	demo, err := DemoAccounts()
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx, demo))
	return s
}

// openPrimary stands in for a reachable primary credential store.
func openPrimary(t *testing.T) *sqlite.IdentityStore {
	t.Helper()
	s, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAuth(primary, fallback repository.IdentityRepository) (*AuthService, *CredentialStore) {
	creds := NewCredentialStore(repository.NewFailover(primary, fallback, quietLogger()))
	return NewAuthService(creds, auth.NewTokens("test-secret", time.Hour)), creds
}

// fakeGateway records calls and answers from its fields.
type fakeGateway struct {
	mu         sync.Mutex
	created    []payment.IntentRequest
	confirms   int
	createErr  error
	confirmErr error
	status     string
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: req.Amount, Currency: req.Currency, Status: "requires_confirmation"}, nil
}

func (g *fakeGateway) Confirm(_ context.Context, id, _ string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirms++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	status := g.status
	if status == "" {
		status = "succeeded"
	}
	return &payment.Intent{ID: id, Status: status}, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created) + g.confirms
}

// recordingPublisher keeps every envelope it is given.
type recordingPublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envs))
	for _, e := range p.envs {
		out = append(out, e.EventType)
	}
	return out
}

// failingOrders refuses to store new orders.
type failingOrders struct {
	*repository.MemoryOrders
}

func (failingOrders) Create(context.Context, *domain.Order) error {
	return errors.New("disk full")
}

func fullAddress() domain.ShippingAddress {
	return domain.ShippingAddress{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"}
}
