package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/prudhivi99/order-tracking/internal/models"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(database *PostgresDB) *OrderRepository {
	return &OrderRepository{db: database.Conn}
}

// Create inserts a new order with items. The order identifier must be
// unused; a collision fails with models.ErrOrderExists.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (order_id, customer_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, orderQuery,
		order.OrderID, order.CustomerID, order.TotalAmount, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return models.ErrOrderExists
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertItems(ctx, tx, order.OrderID, order.Items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Upsert inserts the order if its identifier is unused and reports
// whether a row was written. A redelivered OrderCreated event lands
// here, so an existing record is left untouched.
func (r *OrderRepository) Upsert(ctx context.Context, order *models.Order) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (order_id, customer_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, orderQuery,
		order.OrderID, order.CustomerID, order.TotalAmount, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to upsert order: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return false, nil
	}

	if err := insertItems(ctx, tx, order.OrderID, order.Items); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID string, items []models.OrderItem) error {
	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range items {
		_, err := tx.ExecContext(ctx, itemQuery,
			orderID, item.ProductID, item.Name, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// GetByID returns a single order with items, or (nil, nil) if absent.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	orderQuery := `
		SELECT order_id, customer_id, total_amount, status, created_at, updated_at
		FROM orders WHERE order_id = $1
	`

	var order models.Order
	err := r.db.QueryRowContext(ctx, orderQuery, orderID).
		Scan(&order.OrderID, &order.CustomerID, &order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{orderID})
	if err != nil {
		return nil, err
	}
	order.Items = items[orderID]

	return &order, nil
}

// List returns one page of orders, most recent first, with the total
// count taken in the same transaction as the page read.
func (r *OrderRepository) List(ctx context.Context, page, pageSize int) (*models.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	pageQuery := `
		SELECT order_id, customer_id, total_amount, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := tx.QueryContext(ctx, pageQuery, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	var ids []string
	for rows.Next() {
		var o models.Order
		err := rows.Scan(&o.OrderID, &o.CustomerID, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.OrderID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].OrderID]
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &models.OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	result := make(map[string][]models.OrderItem)
	if len(orderIDs) == 0 {
		return result, nil
	}

	itemsQuery := `
		SELECT order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, itemsQuery, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item models.OrderItem
		err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		result[orderID] = append(result[orderID], item)
	}

	return result, rows.Err()
}

// UpdateStatus sets the order's status and appends the matching
// history entry in one transaction: both commit or neither does.
// The previous status is read under a row lock, so concurrent
// updates to the same order serialize.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus, notes, changedBy string) (*models.StatusHistoryEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous models.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE order_id = $1 FOR UPDATE`, orderID).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to read order status: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3`,
		newStatus, now, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_history (order_id, from_status, to_status, notes, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, previous, newStatus, notes, changedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.StatusHistoryEntry{
		OrderID:   orderID,
		From:      &previous,
		To:        newStatus,
		Notes:     notes,
		ChangedBy: changedBy,
		Timestamp: now,
	}, nil
}

// AppendHistory appends a single history entry. It fails with
// models.ErrOrderNotFound if the order does not exist.
func (r *OrderRepository) AppendHistory(ctx context.Context, entry models.StatusHistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO status_history (order_id, from_status, to_status, notes, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.OrderID, entry.From, entry.To, entry.Notes, entry.ChangedBy, entry.Timestamp)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return models.ErrOrderNotFound
		}
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// EnsureInitialHistory inserts the synthetic null→status entry for a
// freshly persisted order, exactly once: the partial unique index
// makes redelivered or concurrent inserts no-ops.
func (r *OrderRepository) EnsureInitialHistory(ctx context.Context, orderID string, status models.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO status_history (order_id, from_status, to_status, notes, changed_by)
		VALUES ($1, NULL, $2, 'Order created', 'system')
		ON CONFLICT (order_id) WHERE from_status IS NULL DO NOTHING`,
		orderID, status)
	if err != nil {
		return false, fmt.Errorf("failed to insert initial history: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// GetHistory returns the order's status transitions in timestamp order.
func (r *OrderRepository) GetHistory(ctx context.Context, orderID string) ([]models.StatusHistoryEntry, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return nil, models.ErrOrderNotFound
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, notes, changed_by, changed_at
		FROM status_history
		WHERE order_id = $1
		ORDER BY changed_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []models.StatusHistoryEntry
	for rows.Next() {
		var entry models.StatusHistoryEntry
		var from sql.NullString
		err := rows.Scan(&entry.OrderID, &from, &entry.To, &entry.Notes, &entry.ChangedBy, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if from.Valid {
			status := models.OrderStatus(from.String)
			entry.From = &status
		}
		history = append(history, entry)
	}

	return history, rows.Err()
}
