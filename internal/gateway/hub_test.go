package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/order-tracking/internal/cache"
	"github.com/prudhivi99/order-tracking/internal/messaging"
	"github.com/prudhivi99/order-tracking/internal/models"
)

func newTestHub(t *testing.T, pingInterval time.Duration) (*Hub, *cache.RedisCache, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	redisCache, err := cache.NewRedisCache(host, port, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { redisCache.Close() })

	hub := NewHub(redisCache, pingInterval)

	router := gin.New()
	router.GET("/ws/*orderId", hub.HandleConnection)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	return hub, redisCache, wsURL
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestSnapshotFromCache(t *testing.T) {
	_, redisCache, wsURL := newTestHub(t, time.Minute)

	order := models.Order{OrderID: "ord-1", CustomerID: "cust-1", Status: models.StatusShipped}
	require.NoError(t, redisCache.Set(context.Background(), cache.OrderKey("ord-1"), order))

	conn := dial(t, wsURL+"/ord-1")

	env := readEnvelope(t, conn)
	assert.Equal(t, MsgInitialState, env.Type)

	var got models.Order
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "ord-1", got.OrderID)
	assert.Equal(t, models.StatusShipped, got.Status)
}

func TestSnapshotWithoutCachedData(t *testing.T) {
	_, _, wsURL := newTestHub(t, time.Minute)

	conn := dial(t, wsURL+"/ord-unknown")

	env := readEnvelope(t, conn)
	assert.Equal(t, MsgConnected, env.Type)
	assert.Equal(t, "ord-unknown", env.OrderID)
}

func TestBroadcastReachesOnlyMatchingOrder(t *testing.T) {
	hub, _, wsURL := newTestHub(t, time.Minute)

	conn := dial(t, wsURL+"/X")
	readEnvelope(t, conn) // snapshot ack

	eventY, _ := json.Marshal(models.StatusChangedEvent{OrderID: "Y", CurrentStatus: models.StatusShipped})
	eventX, _ := json.Marshal(models.StatusChangedEvent{OrderID: "X", CurrentStatus: models.StatusShipped})

	// The unrelated order first: if it were delivered, it would arrive
	// before X's event
	require.NoError(t, hub.HandleMessage(context.Background(), messaging.TopicStatusChanged, []byte("Y"), eventY))
	require.NoError(t, hub.HandleMessage(context.Background(), messaging.TopicStatusChanged, []byte("X"), eventX))

	env := readEnvelope(t, conn)
	assert.Equal(t, MsgStatusChanged, env.Type)

	var got models.StatusChangedEvent
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "X", got.OrderID)
}

func TestWildcardReceivesEverything(t *testing.T) {
	hub, _, wsURL := newTestHub(t, time.Minute)

	conn := dial(t, wsURL+"/")
	readEnvelope(t, conn) // snapshot ack

	orderA, _ := json.Marshal(models.Order{OrderID: "A", Status: models.StatusCreated})
	eventB, _ := json.Marshal(models.StatusChangedEvent{OrderID: "B", CurrentStatus: models.StatusCancelled})

	require.NoError(t, hub.HandleMessage(context.Background(), messaging.TopicOrderCreated, []byte("A"), orderA))
	require.NoError(t, hub.HandleMessage(context.Background(), messaging.TopicStatusChanged, []byte("B"), eventB))

	first := readEnvelope(t, conn)
	assert.Equal(t, MsgOrderCreated, first.Type)

	second := readEnvelope(t, conn)
	assert.Equal(t, MsgStatusChanged, second.Type)
}

func TestInboundMessagesAreAcked(t *testing.T) {
	_, _, wsURL := newTestHub(t, time.Minute)

	conn := dial(t, wsURL+"/ord-1")
	readEnvelope(t, conn) // snapshot ack

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"there"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, MsgAck, env.Type)
}

func TestDisconnectRemovesRegistration(t *testing.T) {
	hub, _, wsURL := newTestHub(t, time.Minute)

	conn := dial(t, wsURL+"/ord-1")
	readEnvelope(t, conn)
	assert.Equal(t, 1, hub.ConnectionCount())

	conn.Close()

	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnresponsiveConnectionIsTerminated(t *testing.T) {
	hub, _, wsURL := newTestHub(t, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Dial but never read: pings are never answered, so the hub must
	// terminate the connection after two missed probes
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ord-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestUnknownTopicIsIgnored(t *testing.T) {
	hub, _, wsURL := newTestHub(t, time.Minute)

	conn := dial(t, wsURL+"/X")
	readEnvelope(t, conn)

	require.NoError(t, hub.HandleMessage(context.Background(), "order.refunded", []byte("X"), []byte("{}")))
	assert.Equal(t, 1, hub.ConnectionCount())
}
