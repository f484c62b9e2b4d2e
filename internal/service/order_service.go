// Package service holds the coordination logic between the order
// store, the projection cache and the event bus.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/models"
)

// OrderStore is the authoritative persistence contract the ingestion
// path depends on.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	List(ctx context.Context, page, pageSize int) (*models.OrderPage, error)
	GetHistory(ctx context.Context, orderID string) ([]models.StatusHistoryEntry, error)
}

// OrderReader serves projections; backed by the cached repository in
// production so reads hit Redis first.
type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
}

// ProjectionCache is the write side of the order cache. It is always
// written after the store commit, never before.
type ProjectionCache interface {
	Set(ctx context.Context, key string, value interface{}) error
}

// EventPublisher publishes order domain events at-least-once.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishStatusChanged(ctx context.Context, event models.StatusChangedEvent) error
}

// OrderService is the ingestion path. It is the single writer of new
// order identifiers.
type OrderService struct {
	store  OrderStore
	reader OrderReader
	cache  ProjectionCache
	pub    EventPublisher
}

func NewOrderService(store OrderStore, reader OrderReader, cache ProjectionCache, pub EventPublisher) *OrderService {
	return &OrderService{
		store:  store,
		reader: reader,
		cache:  cache,
		pub:    pub,
	}
}

// CreateOrder validates the command, persists the order, caches the
// projection and publishes OrderCreated. Validation failures reject
// the command before any side effect. Cache and publish failures are
// logged but don't fail the request: the store write is the one that
// counts.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if err := models.ValidateCreateOrder(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &models.Order{
		OrderID:    uuid.NewString(),
		CustomerID: req.CustomerID,
		Status:     models.StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var total float64
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
		total += item.Price * float64(item.Quantity)
	}
	order.TotalAmount = total

	// Save to database
	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Cache after the store commit
	if err := s.cache.Set(ctx, cache.OrderKey(order.OrderID), order); err != nil {
		log.Printf("⚠️ Failed to cache order %s: %v", order.OrderID, err)
	}

	// Publish order.created event
	if err := s.pub.PublishOrderCreated(ctx, order); err != nil {
		log.Printf("⚠️ Failed to publish event: %v", err)
		// Don't fail the request, order is already created
	}

	log.Printf("✅ Order %s created with total $%.2f", order.OrderID, order.TotalAmount)
	return order, nil
}

// GetOrder returns the current projection, cache first.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.reader.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns one page of orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, page, pageSize int) (*models.OrderPage, error) {
	return s.store.List(ctx, page, pageSize)
}

// GetHistory returns the order's status transitions in order.
func (s *OrderService) GetHistory(ctx context.Context, orderID string) ([]models.StatusHistoryEntry, error) {
	return s.store.GetHistory(ctx, orderID)
}
