// Package gateway fans bus events out to live WebSocket observers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/messaging"
	"github.com/prudhivi99/order-tracking/internal/models"
)

// Connections with no order suffix register under this key and
// receive every event regardless of order.
const wildcardKey = "broadcast"

// Server-to-client envelope types.
const (
	MsgInitialState  = "INITIAL_STATE"
	MsgConnected     = "CONNECTED"
	MsgError         = "ERROR"
	MsgOrderCreated  = "ORDER_CREATED"
	MsgOrderUpdated  = "ORDER_UPDATED"
	MsgStatusChanged = "STATUS_CHANGED"
	MsgAck           = "ACK"
)

// Envelope is the server-to-client message frame.
type Envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	OrderID string          `json:"orderId,omitempty"`
}

const writeTimeout = 5 * time.Second

// client is one live connection. Writes are serialized by mu; the
// liveness counter is reset by pongs from the read loop and bumped by
// the probe loop.
type client struct {
	conn        *websocket.Conn
	mu          sync.Mutex
	missedPings int32
}

func (c *client) send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(env)
}

// SnapshotCache supplies the best-effort initial projection sent on
// connect.
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
}

// Hub keeps the per-order registries of live connections and delivers
// bus events to them. Slow or dead consumers are dropped, never
// buffered.
type Hub struct {
	upgrader     websocket.Upgrader
	cache        SnapshotCache
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[string]map[*client]bool
}

func NewHub(snapshots SnapshotCache, pingInterval time.Duration) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		cache:        snapshots,
		pingInterval: pingInterval,
		clients:      make(map[string]map[*client]bool),
	}
}

// HandleConnection upgrades the request and registers the connection
// under the order ID parsed from the path, or the wildcard when the
// path carries none.
func (h *Hub) HandleConnection(c *gin.Context) {
	orderID := strings.Trim(c.Param("orderId"), "/")
	if orderID == "" {
		orderID = wildcardKey
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	cl := &client{conn: conn}
	h.register(orderID, cl)
	log.Printf("🔌 Client connected for order: %s", orderID)

	h.sendSnapshot(c.Request.Context(), cl, orderID)

	go h.readLoop(cl, orderID)
}

func (h *Hub) register(orderID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[orderID] == nil {
		h.clients[orderID] = make(map[*client]bool)
	}
	h.clients[orderID][cl] = true
}

func (h *Hub) unregister(orderID string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.clients[orderID]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.clients, orderID)
		}
	}
}

// sendSnapshot sends the cached projection as INITIAL_STATE, or a
// plain CONNECTED ack when the cache has nothing. Advisory only: a
// failure here never closes the connection.
func (h *Hub) sendSnapshot(ctx context.Context, cl *client, orderID string) {
	var order models.Order
	err := h.cache.Get(ctx, cache.OrderKey(orderID), &order)
	switch {
	case err == nil:
		data, _ := json.Marshal(order)
		if err := cl.send(Envelope{Type: MsgInitialState, Data: data}); err != nil {
			log.Printf("⚠️ Failed to send initial state for order %s: %v", orderID, err)
		}
	case errors.Is(err, redis.Nil):
		cl.send(Envelope{
			Type:    MsgConnected,
			Message: fmt.Sprintf("Connected to order %s", orderID),
			OrderID: orderID,
		})
	default:
		log.Printf("⚠️ Failed to fetch initial state for order %s: %v", orderID, err)
		cl.send(Envelope{
			Type:    MsgError,
			Message: "Failed to fetch initial state",
			OrderID: orderID,
		})
	}
}

// readLoop drains inbound frames. Pongs reset the liveness counter,
// any other message is acknowledged. A read error means the client is
// gone and the registration is destroyed.
func (h *Hub) readLoop(cl *client, orderID string) {
	cl.conn.SetPongHandler(func(string) error {
		atomic.StoreInt32(&cl.missedPings, 0)
		return nil
	})

	for {
		_, _, err := cl.conn.ReadMessage()
		if err != nil {
			break
		}
		cl.send(Envelope{Type: MsgAck, Message: "Message received"})
	}

	h.unregister(orderID, cl)
	cl.conn.Close()
	log.Printf("🔌 Client disconnected for order: %s", orderID)
}

// Broadcast delivers an envelope to every connection registered for
// the order, plus the wildcard feed. A connection that can't take the
// write right now is dropped; a reconnecting observer re-fetches full
// state over the REST API.
func (h *Hub) Broadcast(orderID string, env Envelope) {
	h.mu.RLock()
	targets := make(map[*client]bool, len(h.clients[orderID])+len(h.clients[wildcardKey]))
	for cl := range h.clients[orderID] {
		targets[cl] = true
	}
	for cl := range h.clients[wildcardKey] {
		targets[cl] = true
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	for cl := range targets {
		if err := cl.send(env); err != nil {
			cl.conn.Close()
		}
	}

	log.Printf("📡 Broadcast %s to %d clients for order: %s", env.Type, len(targets), orderID)
}

// Run probes every connection on a ticker until ctx is cancelled. A
// connection that misses two consecutive probes is forcibly closed;
// its read loop then tears down the registration.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probeAll()
		}
	}
}

func (h *Hub) probeAll() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.clients {
		for cl := range set {
			all = append(all, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range all {
		if atomic.LoadInt32(&cl.missedPings) >= 2 {
			log.Println("💀 Terminating unresponsive connection")
			cl.conn.Close()
			continue
		}
		atomic.AddInt32(&cl.missedPings, 1)
		cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
	}
}

// ConnectionCount reports the number of live registrations.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}

// HandleMessage is the bus handler for the websocket consumer group:
// it maps each topic onto its envelope type and fans the event out to
// the order's observers.
func (h *Hub) HandleMessage(_ context.Context, topic string, key, value []byte) error {
	orderID := string(key)

	var msgType string
	switch topic {
	case messaging.TopicOrderCreated:
		msgType = MsgOrderCreated
	case messaging.TopicOrderUpdated:
		msgType = MsgOrderUpdated
	case messaging.TopicStatusChanged:
		msgType = MsgStatusChanged
	default:
		log.Printf("⚠️ Unknown topic: %s", topic)
		return nil
	}

	h.Broadcast(orderID, Envelope{Type: msgType, Data: json.RawMessage(value)})
	return nil
}
