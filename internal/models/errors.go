package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrderNotFound is returned when an operation targets an order
	// that does not exist in the store.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderExists is returned on an attempt to create a second order
	// under an identifier that is already taken.
	ErrOrderExists = errors.New("order already exists")
)

// ValidationError rejects a malformed command before any side effect.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

// ValidateCreateOrder checks the structural constraints of a create
// command: at least one item, positive quantities, non-negative prices.
func ValidateCreateOrder(req CreateOrderRequest) error {
	var problems []string

	if strings.TrimSpace(req.CustomerID) == "" {
		problems = append(problems, "customerId is required")
	}
	if len(req.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			problems = append(problems, fmt.Sprintf("items[%d].productId is required", i))
		}
		if strings.TrimSpace(item.Name) == "" {
			problems = append(problems, fmt.Sprintf("items[%d].name is required", i))
		}
		if item.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
		if item.Price < 0 {
			problems = append(problems, fmt.Sprintf("items[%d].price must not be negative", i))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
