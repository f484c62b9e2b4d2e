package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/config"
	"github.com/prudhivi99/order-tracking/internal/db"
	"github.com/prudhivi99/order-tracking/internal/discovery"
	"github.com/prudhivi99/order-tracking/internal/handlers"
	"github.com/prudhivi99/order-tracking/internal/messaging"
	"github.com/prudhivi99/order-tracking/internal/service"
)

const (
	serviceName = "order-service"
	serviceID   = "order-service-1"
)

func main() {
	cfg := config.Load()

	// Connect to PostgreSQL
	database, err := db.NewPostgresDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}

	// Connect to Redis
	redisCache, err := cache.NewRedisCache(cfg.RedisHost, cfg.RedisPort, cfg.CacheTTL())
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Kafka publisher
	publisher := messaging.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	// Repositories and services
	orderRepo := db.NewOrderRepository(database)
	cachedRepo := db.NewCachedOrderRepository(orderRepo, redisCache)
	orderService := service.NewOrderService(orderRepo, cachedRepo, redisCache, publisher)
	orderHandler := handlers.NewOrderHandler(orderService)

	// Register with Consul
	if consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort); err != nil {
		log.Printf("⚠️ Consul unavailable, running unregistered: %v", err)
	} else {
		err = consul.Register(discovery.ServiceConfig{
			Name: serviceName,
			ID:   serviceID,
			Port: cfg.OrderServicePort,
			Tags: []string{"api", "orders"},
		})
		if err != nil {
			log.Printf("⚠️ Failed to register with Consul: %v", err)
		} else {
			defer consul.Deregister(serviceID)
		}
	}

	// Setup router
	router := gin.Default()

	router.GET("/health", orderHandler.HealthCheck)
	router.GET("/orders", orderHandler.ListOrders)
	router.GET("/orders/:id", orderHandler.GetOrder)
	router.GET("/orders/:id/history", orderHandler.GetHistory)
	router.POST("/orders", orderHandler.CreateOrder)

	log.Printf("🚀 Order Service starting on http://localhost:%d", cfg.OrderServicePort)
	if err := router.Run(fmt.Sprintf(":%d", cfg.OrderServicePort)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
