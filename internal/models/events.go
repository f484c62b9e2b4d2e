package models

import "time"

// StatusChangedEvent is published on order.status.changed when an
// order moves to a new status.
type StatusChangedEvent struct {
	OrderID        string      `json:"orderId"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	CurrentStatus  OrderStatus `json:"currentStatus"`
	Notes          string      `json:"notes"`
	Timestamp      time.Time   `json:"timestamp"`
}

// OrderCreated events carry the full order projection as their payload,
// so consumers can persist or display the order without a read-back.
// There is no separate envelope type for them; the Order itself is the
// message value.
