package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/models"
)

func newOrderService() (*OrderService, *fakeStore, *fakeCache, *fakePublisher) {
	store := newFakeStore()
	ch := newFakeCache()
	pub := &fakePublisher{}
	return NewOrderService(store, store, ch, pub), store, ch, pub
}

func TestCreateOrderComputesTotal(t *testing.T) {
	svc, store, ch, pub := newOrderService()

	order, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "cust-1",
		Items: []models.CreateOrderItem{
			{ProductID: "p1", Name: "Widget", Quantity: 2, Price: 10.00},
			{ProductID: "p2", Name: "Gadget", Quantity: 3, Price: 5.50},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, models.StatusCreated, order.Status)
	assert.InDelta(t, 36.50, order.TotalAmount, 0.001)
	assert.Equal(t, order.CreatedAt, order.UpdatedAt)

	// A subsequent read returns an identical projection
	got, err := svc.GetOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order, got)

	// Store, cache and bus all saw the order
	stored, err := store.GetByID(context.Background(), order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, ch.has(cache.OrderKey(order.OrderID)))
	require.Len(t, pub.created, 1)
	assert.Equal(t, order.OrderID, pub.created[0].OrderID)
}

func TestCreateOrderValidationHasNoSideEffects(t *testing.T) {
	svc, store, ch, pub := newOrderService()

	_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "cust-1",
		Items:      []models.CreateOrderItem{{ProductID: "p1", Name: "Widget", Quantity: 0, Price: 10}},
	})

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)

	assert.Empty(t, store.orders)
	assert.Empty(t, ch.data)
	assert.Empty(t, pub.created)
}

func TestCreateOrderStoreFailureAborts(t *testing.T) {
	svc, store, ch, pub := newOrderService()
	store.failCreate = assert.AnError

	_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "cust-1",
		Items:      []models.CreateOrderItem{{ProductID: "p1", Name: "Widget", Quantity: 1, Price: 10}},
	})
	require.Error(t, err)

	// Nothing advisory happens when the authoritative write fails
	assert.Empty(t, ch.data)
	assert.Empty(t, pub.created)
}

func TestCreateOrderAdvisoryFailuresAreTolerated(t *testing.T) {
	svc, store, ch, pub := newOrderService()
	ch.failSet = assert.AnError
	pub.failPublish = assert.AnError

	order, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
		CustomerID: "cust-1",
		Items:      []models.CreateOrderItem{{ProductID: "p1", Name: "Widget", Quantity: 1, Price: 10}},
	})
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestGetOrderNotFound(t *testing.T) {
	svc, _, _, _ := newOrderService()

	_, err := svc.GetOrder(context.Background(), "unknown")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestListOrdersPagination(t *testing.T) {
	svc, _, _, _ := newOrderService()

	for i := 0; i < 5; i++ {
		_, err := svc.CreateOrder(context.Background(), models.CreateOrderRequest{
			CustomerID: "cust-1",
			Items:      []models.CreateOrderItem{{ProductID: "p1", Name: "Widget", Quantity: 1, Price: 10}},
		})
		require.NoError(t, err)
	}

	page, err := svc.ListOrders(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)

	// Past-the-end page is empty, not an error
	page, err = svc.ListOrders(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, 5, page.Total)
}
