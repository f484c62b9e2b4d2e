package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/messaging"
	"github.com/prudhivi99/order-tracking/internal/models"
)

// StatusStore is the persistence contract of the status-update and
// projection paths.
type StatusStore interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, notes, changedBy string) (*models.StatusHistoryEntry, error)
	Upsert(ctx context.Context, order *models.Order) (bool, error)
	EnsureInitialHistory(ctx context.Context, orderID string, status models.OrderStatus) (bool, error)
}

// StatusService owns the status-update path and the OrderCreated
// projection consumer.
type StatusService struct {
	store StatusStore
	cache ProjectionCache
	pub   EventPublisher
}

func NewStatusService(store StatusStore, cache ProjectionCache, pub EventPublisher) *StatusService {
	return &StatusService{
		store: store,
		cache: cache,
		pub:   pub,
	}
}

// UpdateStatus moves an order to a new status. The store is read as
// the source of truth, never the cache. Status update and history
// append commit together; cache overwrite and event publish are
// advisory and only logged on failure.
func (s *StatusService) UpdateStatus(ctx context.Context, orderID, status, notes string) (*models.Order, error) {
	newStatus := models.OrderStatus(status)
	if !newStatus.Valid() {
		return nil, &models.ValidationError{Problems: []string{fmt.Sprintf("invalid status %q", status)}}
	}

	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	if order == nil {
		return nil, models.ErrOrderNotFound
	}

	entry, err := s.store.UpdateStatus(ctx, orderID, newStatus, notes, "system")
	if err != nil {
		return nil, err
	}

	order.Status = entry.To
	order.UpdatedAt = entry.Timestamp

	if err := s.cache.Set(ctx, cache.OrderKey(orderID), order); err != nil {
		log.Printf("⚠️ Failed to cache order %s: %v", orderID, err)
	}

	event := models.StatusChangedEvent{
		OrderID:        orderID,
		PreviousStatus: *entry.From,
		CurrentStatus:  entry.To,
		Notes:          notes,
		Timestamp:      entry.Timestamp,
	}
	if err := s.pub.PublishStatusChanged(ctx, event); err != nil {
		log.Printf("⚠️ Failed to publish event: %v", err)
	}

	log.Printf("✅ Order %s status updated: %s → %s", orderID, *entry.From, entry.To)
	return order, nil
}

// ProcessOrderCreated is the projection consumer for order.created.
// The bus delivers at-least-once, so every step is idempotent: the
// upsert leaves an existing record untouched, the cache overwrite is
// harmless, and the synthetic history insert is a no-op when the
// entry already exists.
func (s *StatusService) ProcessOrderCreated(ctx context.Context, order *models.Order) error {
	inserted, err := s.store.Upsert(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to persist order %s: %w", order.OrderID, err)
	}
	if inserted {
		log.Printf("✅ Order %s persisted", order.OrderID)
	} else {
		log.Printf("📦 Order %s already exists, skipping insert", order.OrderID)
	}

	// Cache may have expired between deliveries, repopulate either way
	if err := s.cache.Set(ctx, cache.OrderKey(order.OrderID), order); err != nil {
		log.Printf("⚠️ Failed to cache order %s: %v", order.OrderID, err)
	}

	created, err := s.store.EnsureInitialHistory(ctx, order.OrderID, order.Status)
	if err != nil {
		return fmt.Errorf("failed to init status history for %s: %w", order.OrderID, err)
	}
	if created {
		log.Printf("✅ Status history initialized for order %s", order.OrderID)
	}

	return nil
}

// HandleMessage is the bus handler for the status-update consumer
// group. Errors bubble up to the consumer loop, which logs and skips;
// one bad message never stalls delivery for other orders.
func (s *StatusService) HandleMessage(ctx context.Context, topic string, key, value []byte) error {
	switch topic {
	case messaging.TopicOrderCreated:
		var order models.Order
		if err := json.Unmarshal(value, &order); err != nil {
			return fmt.Errorf("failed to parse event: %w", err)
		}
		return s.ProcessOrderCreated(ctx, &order)
	case messaging.TopicOrderUpdated:
		log.Printf("📥 Order updated event received: %s", string(key))
		return nil
	default:
		log.Printf("⚠️ Unknown topic: %s", topic)
		return nil
	}
}
