package models

import "time"

// OrderStatus is the fixed set of states an order moves through.
type OrderStatus string

const (
	StatusCreated    OrderStatus = "CREATED"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the enumerated statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	OrderID     string      `json:"orderId"`
	CustomerID  string      `json:"customerId"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// StatusHistoryEntry is one append-only record of a status transition.
// From is nil only for the synthetic entry written when the order is
// first persisted.
type StatusHistoryEntry struct {
	OrderID   string       `json:"orderId"`
	From      *OrderStatus `json:"from"`
	To        OrderStatus  `json:"to"`
	Notes     string       `json:"notes"`
	ChangedBy string       `json:"changedBy"`
	Timestamp time.Time    `json:"timestamp"`
}

type CreateOrderRequest struct {
	CustomerID string            `json:"customerId" binding:"required"`
	Items      []CreateOrderItem `json:"items" binding:"required"`
}

type CreateOrderItem struct {
	ProductID string  `json:"productId" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"`
	Price     float64 `json:"price"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// OrderPage is one page of orders, newest first.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
}
