package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/config"
	"github.com/prudhivi99/order-tracking/internal/discovery"
	"github.com/prudhivi99/order-tracking/internal/gateway"
	"github.com/prudhivi99/order-tracking/internal/messaging"
)

const (
	serviceName = "ws-gateway"
	serviceID   = "ws-gateway-1"
)

func main() {
	cfg := config.Load()

	// Connect to Redis (snapshot source for new connections)
	redisCache, err := cache.NewRedisCache(cfg.RedisHost, cfg.RedisPort, cfg.CacheTTL())
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	hub := gateway.NewHub(redisCache, cfg.PingInterval())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Liveness probes
	go hub.Run(ctx)

	// Fan-out consumer: every order event reaches the hub
	consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.GroupWebSocket,
		[]string{messaging.TopicOrderCreated, messaging.TopicOrderUpdated, messaging.TopicStatusChanged})
	defer consumer.Close()

	go func() {
		if err := consumer.Run(ctx, hub.HandleMessage); err != nil {
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
			Port: cfg.WSGatewayPort,
			Tags: []string{"ws", "orders"},
		})
		if err != nil {
			log.Printf("⚠️ Failed to register with Consul: %v", err)
		} else {
			defer consul.Deregister(serviceID)
		}
	}

	// Setup router
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"service":     serviceName,
			"connections": hub.ConnectionCount(),
		})
	})
	router.GET("/ws/*orderId", hub.HandleConnection)

	go func() {
		log.Printf("🚀 WebSocket Gateway starting on http://localhost:%d", cfg.WSGatewayPort)
		if err := router.Run(fmt.Sprintf(":%d", cfg.WSGatewayPort)); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("👋 WebSocket Gateway shutting down")
}
