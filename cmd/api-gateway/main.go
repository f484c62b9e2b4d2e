package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prudhivi99/order-tracking/internal/config"
	"github.com/prudhivi99/order-tracking/internal/discovery"
)

// Gateway fronts the order and status services with a single entry
// point, resolving their addresses through Consul with static
// fallbacks for environments without an agent.
type Gateway struct {
	consul   *discovery.ConsulClient
	mutex    sync.RWMutex
	proxies  map[string]*httputil.ReverseProxy
	services map[string]string
}

func NewGateway(consul *discovery.ConsulClient) *Gateway {
	g := &Gateway{
		consul:   consul,
		proxies:  make(map[string]*httputil.ReverseProxy),
		services: make(map[string]string),
	}

	g.discoverServices()
	go g.watchServices()

	return g
}

func (g *Gateway) discoverServices() {
	fallbacks := map[string]string{
		"order-service":  "http://order-service:8081",
		"status-service": "http://status-service:8082",
	}

	for svc, fallback := range fallbacks {
		serviceURL := fallback
		if g.consul != nil {
			resolved, err := g.consul.GetServiceURL(svc)
			if err != nil {
				log.Printf("⚠️ Service %s not found in Consul: %v", svc, err)
			} else {
				serviceURL = resolved
			}
		}
		g.updateProxy(svc, serviceURL)
	}
}

func (g *Gateway) watchServices() {
	ticker := time.NewTicker(10 * time.Second)
	for range ticker.C {
		g.discoverServices()
	}
}

func (g *Gateway) updateProxy(serviceName, serviceURL string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	target, err := url.Parse(serviceURL)
	if err != nil {
		log.Printf("❌ Invalid URL for %s: %v", serviceName, err)
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("❌ Proxy error for %s: %v", serviceName, err)
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error": "service unavailable"}`)
	}

	g.proxies[serviceName] = proxy
	g.services[serviceName] = serviceURL
}

func (g *Gateway) getProxy(serviceName string) *httputil.ReverseProxy {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.proxies[serviceName]
}

// ProxyOrders routes order traffic: status updates go to the
// status-service, everything else to the order-service.
func (g *Gateway) ProxyOrders(c *gin.Context) {
	serviceName := "order-service"
	if c.Request.Method == http.MethodPatch && strings.HasSuffix(c.Request.URL.Path, "/status") {
		serviceName = "status-service"
	}

	proxy := g.getProxy(serviceName)
	if proxy == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": serviceName + " unavailable"})
		return
	}
	log.Printf("🔀 Routing %s %s → %s", c.Request.Method, c.Request.URL.Path, serviceName)
	proxy.ServeHTTP(c.Writer, c.Request)
}

func (g *Gateway) HealthCheck(c *gin.Context) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	statuses := make(map[string]string)
	allHealthy := true

	client := &http.Client{Timeout: 2 * time.Second}

	for name, serviceURL := range g.services {
		resp, err := client.Get(serviceURL + "/health")
		if err != nil || resp.StatusCode != http.StatusOK {
			statuses[name] = "unhealthy"
			allHealthy = false
		} else {
			statuses[name] = "healthy"
		}
		if resp != nil {
			resp.Body.Close()
		}
	}

	status := "healthy"
	if !allHealthy {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"service":  "api-gateway",
		"services": statuses,
	})
}

func (g *Gateway) ListServices(c *gin.Context) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	c.JSON(http.StatusOK, gin.H{"services": g.services})
}

func main() {
	cfg := config.Load()

	consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort)
	if err != nil {
		log.Printf("⚠️ Failed to connect to Consul, using static fallbacks: %v", err)
		consul = nil
	}

	gateway := NewGateway(consul)

	router := gin.Default()

	router.GET("/health", gateway.HealthCheck)
	router.GET("/services", gateway.ListServices)

	router.Any("/orders", gateway.ProxyOrders)
	router.Any("/orders/*path", gateway.ProxyOrders)

	log.Printf("🚀 API Gateway starting on http://0.0.0.0:%d", cfg.APIGatewayPort)
	router.Run(fmt.Sprintf(":%d", cfg.APIGatewayPort))
}
