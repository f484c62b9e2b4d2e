// Package client is the consumer side of the live order feed.
package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prudhivi99/order-tracking/internal/gateway"
)

// Handler receives each envelope delivered on the feed.
type Handler func(env gateway.Envelope)

// FeedClient maintains a live connection to the ws-gateway for one
// order (or the wildcard feed). Lost connections are re-dialed with a
// capped exponential backoff; after maxRetries the client gives up
// and reports a disconnected state instead of retrying forever. The
// feed is best-effort: after a reconnect the caller should re-fetch
// full state over the REST API rather than trust the stream alone.
type FeedClient struct {
	baseURL    string
	dialer     *websocket.Dialer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	handler    Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	done      chan struct{}
	closed    bool
}

func NewFeedClient(baseURL string, handler Handler) *FeedClient {
	return &FeedClient{
		baseURL: baseURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		maxRetries: 5,
		baseDelay:  3 * time.Second,
		maxDelay:   30 * time.Second,
		handler:    handler,
		done:       make(chan struct{}),
	}
}

// Connect dials the feed for orderID (empty = wildcard feed) and
// starts delivering envelopes to the handler. It returns once the
// first connection is established, or fails after the retry budget is
// spent.
func (c *FeedClient) Connect(ctx context.Context, orderID string) error {
	if err := c.dialWithRetry(ctx, orderID); err != nil {
		return err
	}

	go c.readLoop(ctx, orderID)
	return nil
}

func (c *FeedClient) dialWithRetry(ctx context.Context, orderID string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, orderID)

	delay := c.baseDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("🔄 Reconnecting to feed (attempt %d/%d)", attempt, c.maxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		conn, _, err := c.dialer.DialContext(ctx, url, nil)
		if err != nil {
			log.Printf("⚠️ Feed dial failed: %v", err)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		return nil
	}

	c.setDisconnected()
	return fmt.Errorf("feed connection failed after %d attempts", c.maxRetries)
}

func (c *FeedClient) readLoop(ctx context.Context, orderID string) {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()

		if closed || conn == nil {
			return
		}

		var env gateway.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}

			log.Printf("⚠️ Feed connection lost: %v", err)
			conn.Close()
			if err := c.dialWithRetry(ctx, orderID); err != nil {
				log.Printf("❌ Feed disconnected: %v", err)
				return
			}
			continue
		}

		c.handler(env)
	}
}

func (c *FeedClient) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Connected reports whether the feed currently has a live connection.
func (c *FeedClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Done is closed when the client has given up reconnecting or was
// closed.
func (c *FeedClient) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down and stops reconnecting.
func (c *FeedClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.connected = false
	alreadyClosed := c.closed
	if !alreadyClosed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
