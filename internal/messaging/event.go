// Package messaging is the Kafka adapter for order domain events.
package messaging

// Bus topics. Keys are order identifiers, so Kafka preserves the
// emission order of all events for one order.
const (
	TopicOrderCreated  = "order.created"
	TopicOrderUpdated  = "order.updated" // reserved, consumers log and skip
	TopicStatusChanged = "order.status.changed"
)

// Event type tags carried in the eventType message header.
const (
	EventTypeOrderCreated  = "OrderCreated"
	EventTypeStatusChanged = "StatusChanged"
)

// Consumer group ids for the two logical consumers of the bus.
const (
	GroupStatusUpdate = "status-update-group"
	GroupWebSocket    = "websocket-group"
)
