package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

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
	serviceName = "status-service"
	serviceID   = "status-service-1"
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

	// Kafka publisher for status.changed events
	publisher := messaging.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	orderRepo := db.NewOrderRepository(database)
	statusService := service.NewStatusService(orderRepo, redisCache, publisher)
	statusHandler := handlers.NewStatusHandler(statusService)

	// Projection consumer: persists orders from order.created exactly
	// once and keeps the cache warm.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.GroupStatusUpdate,
		[]string{messaging.TopicOrderCreated, messaging.TopicOrderUpdated})
	defer consumer.Close()

	go func() {
		if err := consumer.Run(ctx, statusService.HandleMessage); err != nil {
			log.Printf("❌ Consumer stopped: %v", err)
		}
	}()

	// Register with Consul
	if consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort); err != nil {
		log.Printf("⚠️ Consul unavailable, running unregistered: %v", err)
	} else {
		err = consul.Register(discovery.ServiceConfig{
			Name: serviceName,
			ID:   serviceID,
			Port: cfg.StatusServicePort,
			Tags: []string{"api", "status"},
		})
		if err != nil {
			log.Printf("⚠️ Failed to register with Consul: %v", err)
		} else {
			defer consul.Deregister(serviceID)
		}
	}

	// Setup router
	router := gin.Default()

	router.GET("/health", statusHandler.HealthCheck)
	router.PATCH("/orders/:id/status", statusHandler.UpdateStatus)

	go func() {
		log.Printf("🚀 Status Service starting on http://localhost:%d", cfg.StatusServicePort)
		if err := router.Run(fmt.Sprintf(":%d", cfg.StatusServicePort)); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("👋 Status Service shutting down")
}
