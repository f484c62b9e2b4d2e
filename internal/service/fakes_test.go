package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/prudhivi99/order-tracking/internal/models"
)

// fakeStore is an in-memory stand-in for the Postgres repository with
// the same atomicity guarantees per order.
type fakeStore struct {
	mu      sync.Mutex
	orders  map[string]models.Order
	history map[string][]models.StatusHistoryEntry

	failCreate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:  make(map[string]models.Order),
		history: make(map[string][]models.StatusHistoryEntry),
	}
}

func (s *fakeStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate != nil {
		return s.failCreate
	}
	if _, ok := s.orders[order.OrderID]; ok {
		return models.ErrOrderExists
	}
	s.orders[order.OrderID] = *order
	return nil
}

func (s *fakeStore) Upsert(_ context.Context, order *models.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.OrderID]; ok {
		return false, nil
	}
	s.orders[order.OrderID] = *order
	return true, nil
}

func (s *fakeStore) GetByID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (s *fakeStore) List(_ context.Context, page, pageSize int) (*models.OrderPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []models.Order
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	total := len(orders)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &models.OrderPage{
		Orders:     orders[start:end],
		Total:      total,
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, orderID string, newStatus models.OrderStatus, notes, changedBy string) (*models.StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}

	previous := order.Status
	now := time.Now().UTC()
	order.Status = newStatus
	order.UpdatedAt = now
	s.orders[orderID] = order

	entry := models.StatusHistoryEntry{
		OrderID:   orderID,
		From:      &previous,
		To:        newStatus,
		Notes:     notes,
		ChangedBy: changedBy,
		Timestamp: now,
	}
	s.history[orderID] = append(s.history[orderID], entry)
	return &entry, nil
}

func (s *fakeStore) EnsureInitialHistory(_ context.Context, orderID string, status models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.history[orderID] {
		if entry.From == nil {
			return false, nil
		}
	}
	s.history[orderID] = append([]models.StatusHistoryEntry{{
		OrderID:   orderID,
		To:        status,
		Notes:     "Order created",
		ChangedBy: "system",
		Timestamp: time.Now().UTC(),
	}}, s.history[orderID]...)
	return true, nil
}

func (s *fakeStore) GetHistory(_ context.Context, orderID string) ([]models.StatusHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, models.ErrOrderNotFound
	}
	return append([]models.StatusHistoryEntry(nil), s.history[orderID]...), nil
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failSet != nil {
		return c.failSet
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type fakePublisher struct {
	mu      sync.Mutex
	created []models.Order
	changed []models.StatusChangedEvent

	failPublish error
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, order *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failPublish != nil {
		return p.failPublish
	}
	p.created = append(p.created, *order)
	return nil
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, event models.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failPublish != nil {
		return p.failPublish
	}
	p.changed = append(p.changed, event)
	return nil
}
