package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akarpov/orders-bridge/internal/application"
	"github.com/akarpov/orders-bridge/internal/domain"
	"github.com/akarpov/orders-bridge/internal/repository"
)

// fakeRepo is an in-memory stand-in for the Postgres store. Save enforces
// external id uniqueness under one lock, mirroring the UNIQUE constraint.
type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	skipExists bool  // simulate a pre-check that lost the race
	saveErr    error // simulate a store failure
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[string]*domain.Order{}}
}

func (f *fakeRepo) Exists(_ context.Context, externalOrderID string) (bool, error) {
	if f.skipExists {
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.orders[externalOrderID]
	return ok, nil
}

func (f *fakeRepo) Save(_ context.Context, o *domain.Order) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[o.ExternalOrderID]; ok {
		return repository.ErrDuplicateOrder
	}
	o.ID = uuid.New()
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	f.orders[o.ExternalOrderID] = &cp
	return nil
}

func (f *fakeRepo) GetByExternalID(_ context.Context, externalOrderID string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[externalOrderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, status *domain.Status) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, externalOrderID string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[externalOrderID]; ok {
		o.Status = status
	}
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func twoItemRequest(orderID string) application.IngestRequest {
	return application.IngestRequest{
		OrderID: orderID,
		Items: []application.IngestItem{
			{ProductCode: "A", ProductName: "Widget", UnitPrice: dec("10.00"), Quantity: 2},
			{ProductCode: "B", UnitPrice: dec("5.50"), Quantity: 3},
		},
	}
}

func TestIngest(t *testing.T) {
	repo := newFakeRepo()
	svc := application.NewOrdersService(repo)

	snap, err := svc.Ingest(context.Background(), twoItemRequest("ord-1"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, snap.ID)
	assert.Equal(t, "ord-1", snap.ExternalOrderID)
	assert.Equal(t, domain.StatusProcessed, snap.Status)
	assert.True(t, snap.TotalValue.Equal(dec("36.50")), "total %s", snap.TotalValue)
	require.Len(t, snap.Items, 2)
	assert.True(t, snap.Items[0].Subtotal.Equal(dec("20.00")))
	assert.True(t, snap.Items[1].Subtotal.Equal(dec("16.50")))
	assert.False(t, snap.CreatedAt.IsZero())
	assert.Equal(t, snap.CreatedAt, snap.UpdatedAt)

	stored, err := repo.GetByExternalID(context.Background(), "ord-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusProcessed, stored.Status)
}

func TestIngestDuplicateRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := application.NewOrdersService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, twoItemRequest("ord-1"))
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, twoItemRequest("ord-1"))
	require.ErrorIs(t, err, application.ErrDuplicateOrder)

	assert.Len(t, repo.orders, 1)
}

func TestIngestDuplicateCaughtByStoreConstraint(t *testing.T) {
	// Pre-check races are resolved by the store: even when Exists sees
	// nothing, the save still fails as a duplicate.
	repo := newFakeRepo()
	svc := application.NewOrdersService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, twoItemRequest("ord-1"))
	require.NoError(t, err)

	repo.skipExists = true
	_, err = svc.Ingest(ctx, twoItemRequest("ord-1"))
	require.ErrorIs(t, err, application.ErrDuplicateOrder)
	assert.Len(t, repo.orders, 1)
}

func TestIngestConcurrentSameID(t *testing.T) {
	repo := newFakeRepo()
	svc := application.NewOrdersService(repo)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Ingest(context.Background(), twoItemRequest("ord-race"))
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, application.ErrDuplicateOrder):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
	assert.Len(t, repo.orders, 1)
}

func TestIngestStoreFailureHasNoEffect(t *testing.T) {
	repo := newFakeRepo()
	repo.saveErr = errors.New("connection reset")
	svc := application.NewOrdersService(repo)

	_, err := svc.Ingest(context.Background(), twoItemRequest("ord-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, application.ErrDuplicateOrder)
	assert.Empty(t, repo.orders)
}

func TestFindByExternalID(t *testing.T) {
	repo := newFakeRepo()
	svc := application.NewOrdersService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, twoItemRequest("ord-1"))
	require.NoError(t, err)

	snap, err := svc.FindByExternalID(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "ord-1", snap.ExternalOrderID)
	assert.Len(t, snap.Items, 2)

	missing, err := svc.FindByExternalID(ctx, "no-such-order")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListWithStatusFilter(t *testing.T) {
	repo := newFakeRepo()
	svc := application.NewOrdersService(repo)
	ctx := context.Background()

	for _, id := range []string{"ord-1", "ord-2", "ord-3"} {
		_, err := svc.Ingest(ctx, twoItemRequest(id))
		require.NoError(t, err)
	}
	require.NoError(t, repo.UpdateStatus(ctx, "ord-2", domain.StatusSent))
	require.NoError(t, repo.UpdateStatus(ctx, "ord-3", domain.StatusError))

	sent := domain.StatusSent
	snaps, err := svc.List(ctx, &sent)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "ord-2", snaps[0].ExternalOrderID)

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIngestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*application.IngestRequest)
		wantErr bool
	}{
		{"valid", func(r *application.IngestRequest) {}, false},
		{"empty order id", func(r *application.IngestRequest) { r.OrderID = "  " }, true},
		{"no items", func(r *application.IngestRequest) { r.Items = nil }, true},
		{"empty product code", func(r *application.IngestRequest) { r.Items[0].ProductCode = "" }, true},
		{"negative price", func(r *application.IngestRequest) { r.Items[0].UnitPrice = dec("-1.00") }, true},
		{"zero quantity", func(r *application.IngestRequest) { r.Items[1].Quantity = 0 }, true},
		{"zero price is fine", func(r *application.IngestRequest) { r.Items[0].UnitPrice = dec("0") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := twoItemRequest("ord-1")
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
