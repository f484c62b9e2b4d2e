package db

import (
	"context"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/models"
)

// CachedOrderRepository is the two-tier read path: projections come
// from Redis when present, otherwise from Postgres with the cache
// repopulated on the way out. Cache trouble degrades to store reads,
// it never fails the request.
type orderGetter interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
}

type CachedOrderRepository struct {
	repo  orderGetter
	cache *cache.RedisCache
}

func NewCachedOrderRepository(repo orderGetter, cache *cache.RedisCache) *CachedOrderRepository {
	return &CachedOrderRepository{
		repo:  repo,
		cache: cache,
	}
}

// GetByID returns a single order (with caching), or (nil, nil) if absent.
func (r *CachedOrderRepository) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	cacheKey := cache.OrderKey(orderID)

	// Try cache first
	var order models.Order
	err := r.cache.Get(ctx, cacheKey, &order)
	if err == nil {
		log.Printf("📦 Cache HIT: order %s", orderID)
		return &order, nil
	}

	if !errors.Is(err, redis.Nil) {
		log.Printf("⚠️ Cache error: %v", err)
	}

	// Cache miss - get from database
	log.Printf("💾 Cache MISS: order %s - fetching from DB", orderID)
	o, err := r.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o == nil {
		return nil, nil
	}

	// Store in cache
	if err := r.cache.Set(ctx, cacheKey, o); err != nil {
		log.Printf("⚠️ Failed to cache order: %v", err)
	}

	return o, nil
}
