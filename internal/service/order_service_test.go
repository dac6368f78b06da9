package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"
)

type orderFixture struct {
	svc    *OrderService
	orders *repository.MemoryOrders
	pub    *recordingPublisher
	ann    *domain.Identity
	bob    *domain.Identity
	admin  *domain.Identity
}

func setupOrders(t *testing.T) orderFixture {
	t.Helper()
	ctx := context.Background()
	authSvc, creds := newAuth(openPrimary(t), openFallback(t))
	ann, err := authSvc.Register(ctx, "Ann", "ann@example.com", "pw")
	require.NoError(t, err)
	bob, err := authSvc.Register(ctx, "Bob", "bob@example.com", "pw")
	require.NoError(t, err)

	orders := repository.NewMemoryOrders()
	pub := &recordingPublisher{}
	return orderFixture{
		svc:    NewOrderService(orders, creds, pub, "storefront-test", quietLogger()),
		orders: orders,
		pub:    pub,
		ann:    ann.User,
		bob:    bob.User,
		admin:  &domain.Identity{ID: "m-admin", Role: domain.RoleAdmin},
	}
}

func sampleInput() CreateOrderInput {
	return CreateOrderInput{
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Widget", Price: 19.99, Quantity: 2},
			{ProductID: "p2", Name: "Gadget", Price: 5, Quantity: 1},
		},
		ShippingAddress: fullAddress(),
		TaxPrice:        1.5,
	}
}

func TestOrder_Create_RecomputesTotals(t *testing.T) {
	f := setupOrders(t)
	o, err := f.svc.Create(context.Background(), f.ann.ID, sampleInput())
	require.NoError(t, err)

	assert.Equal(t, 44.98, o.ItemsPrice)
	assert.Equal(t, 1.5, o.TaxPrice)
	assert.Equal(t, 0.0, o.ShippingPrice)
	assert.Equal(t, 46.48, o.TotalPrice)
	assert.Equal(t, DefaultPaymentMethod, o.PaymentMethod)
	assert.False(t, o.IsPaid)
	assert.Equal(t, []string{events.TopicOrderPlaced}, f.pub.topics())
}

func TestOrder_Create_Invalid(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()

	in := sampleInput()
	in.Items = nil
	_, err := f.svc.Create(ctx, f.ann.ID, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = sampleInput()
	in.Items[0].Quantity = 0
	_, err = f.svc.Create(ctx, f.ann.ID, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = sampleInput()
	in.ShippingAddress.ZipCode = ""
	_, err = f.svc.Create(ctx, f.ann.ID, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = sampleInput()
	in.ShippingPrice = -1
	_, err = f.svc.Create(ctx, f.ann.ID, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	all, _ := f.orders.ListAll(ctx)
	assert.Empty(t, all)
}

func TestOrder_Get_OwnerOrAdmin(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, f.ann.ID, sampleInput())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.ann, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, "Ann", got.User.Name)
	assert.Equal(t, "ann@example.com", got.User.Email)

	_, err = f.svc.Get(ctx, f.bob, o.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(ctx, f.admin, o.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, f.ann, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.svc.Get(ctx, nil, o.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestOrder_MarkPaidAndDelivered(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, f.ann.ID, sampleInput())
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, f.bob, o.ID, domain.PaymentResult{ID: "pi_1"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	paid, err := f.svc.MarkPaid(ctx, f.ann, o.ID, domain.PaymentResult{ID: "pi_1", Status: "succeeded", EmailAddress: "ann@example.com"})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "pi_1", paid.PaymentResult.ID)

	delivered, err := f.svc.MarkDelivered(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	assert.NotNil(t, delivered.DeliveredAt)

	stored, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
	assert.True(t, stored.IsDelivered)
	// the snapshot is untouched by fulfilment
	assert.Equal(t, 46.48, stored.TotalPrice)

	assert.Equal(t, []string{events.TopicOrderPlaced, events.TopicOrderPaid, events.TopicOrderDelivered}, f.pub.topics())
}

func TestOrder_ListByUser(t *testing.T) {
	f := setupOrders(t)
	ctx := context.Background()
	first, _ := f.svc.Create(ctx, f.ann.ID, sampleInput())
	_, _ = f.svc.Create(ctx, f.bob.ID, sampleInput())
	second, _ := f.svc.Create(ctx, f.ann.ID, sampleInput())

	mine, err := f.svc.ListByUser(ctx, f.ann.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuthorize(t *testing.T) {
	o := &domain.Order{UserID: "u1"}
	assert.NoError(t, Authorize(&domain.Identity{ID: "u1"}, o))
	assert.NoError(t, Authorize(&domain.Identity{ID: "x", Role: domain.RoleAdmin}, o))
	assert.ErrorIs(t, Authorize(&domain.Identity{ID: "u2"}, o), domain.ErrForbidden)
}
