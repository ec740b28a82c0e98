package store

import (
	"context"
	"fmt"
	"time"

	"dispatch-service/internal/models"
)

// CreateOrder persists a new order and appends its id to the owning
// store's ordered-items list in one transaction.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_id, store_id, warehouse_id, items, total_amount,
			status, payment_method, estimated_delivery_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.OrderID, order.StoreID, order.WarehouseID, order.Items,
		order.TotalAmount, order.Status, order.PaymentMethod,
		order.EstimatedDeliveryTime).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE stores
		SET ordered_items = ordered_items || to_jsonb($1::text), updated_at = now()
		WHERE store_id = $2`,
		order.OrderID, order.StoreID)
	if err != nil {
		return fmt.Errorf("failed to append order to store: %w", err)
	}

	return tx.Commit()
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_id = $1", orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return &order, nil
}

// UpdateOrderStatus overwrites an order's status. DeliveredAt is stamped
// when the new status is delivered.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	var deliveredAt *time.Time
	if status == models.OrderStatusDelivered {
		now := time.Now()
		deliveredAt = &now
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, delivered_at = COALESCE($2, delivered_at), updated_at = now()
		WHERE order_id = $3`,
		status, deliveredAt, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return nil
}

// CancelOrder moves an order to the canceled state with a reason.
func (s *Store) CancelOrder(ctx context.Context, orderID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, cancellation_reason = $2, updated_at = now()
		WHERE order_id = $3`,
		models.OrderStatusCanceled, reason, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return nil
}

// SetOrderStore repoints an order at a single chosen store.
func (s *Store) SetOrderStore(ctx context.Context, orderID, storeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET store_id = $1, updated_at = now() WHERE order_id = $2`,
		storeID, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return nil
}

// GetOrdersByWarehouse retrieves every order for a warehouse.
func (s *Store) GetOrdersByWarehouse(ctx context.Context, warehouseID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE warehouse_id = $1 ORDER BY created_at", warehouseID)
	return orders, err
}

// GetOrdersByStore retrieves every order placed by a store.
func (s *Store) GetOrdersByStore(ctx context.Context, storeID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE store_id = $1 ORDER BY created_at DESC", storeID)
	return orders, err
}

// AssignAgentToOrder binds an agent to an order in one transaction:
// the order gains the agent id and new status, the agent gains the order
// in its current set and turns busy.
func (s *Store) AssignAgentToOrder(ctx context.Context, orderID, agentID, orderStatus string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET delivery_agent_id = $1, status = $2, updated_at = now()
		WHERE order_id = $3`,
		agentID, orderStatus, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE delivery_agents
		SET current_orders = current_orders || to_jsonb($1::text),
			status = $2, updated_at = now()
		WHERE agent_id = $3 AND NOT current_orders ? $1`,
		orderID, models.AgentStatusBusy, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the agent is missing or it already carries the order;
		// distinguish so duplicates stay idempotent.
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM delivery_agents WHERE agent_id = $1)", agentID); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
		}
	}

	return tx.Commit()
}

// ClearOrderAgent removes the agent binding from an order without
// touching its status.
func (s *Store) ClearOrderAgent(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET delivery_agent_id = NULL, updated_at = now() WHERE order_id = $1`,
		orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	return nil
}
