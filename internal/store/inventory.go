package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch-service/internal/models"
)

// GetInventoryRecord retrieves the (warehouse, product) record. A missing
// record returns (nil, nil): readers treat it as zero stock, not an error.
func (s *Store) GetInventoryRecord(ctx context.Context, warehouseID, productID string) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM warehouse_inventory WHERE warehouse_id = $1 AND product_id = $2",
		warehouseID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInventoryByWarehouse retrieves all inventory records for a warehouse.
func (s *Store) GetInventoryByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM warehouse_inventory WHERE warehouse_id = $1", warehouseID)
	return records, err
}

// GetAllInventory retrieves every inventory record across warehouses.
func (s *Store) GetAllInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := s.db.SelectContext(ctx, &records, "SELECT * FROM warehouse_inventory")
	return records, err
}

// ReserveStock increments reserved for every line item in one
// transaction. Each row update is conditional on reserved+qty <= stock, so
// the batch is rejected wholesale when any line would overdraw (the
// conditional-write arbitration for the load counters).
func (s *Store) ReserveStock(ctx context.Context, warehouseID string, items []models.LineItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE warehouse_inventory
			SET reserved = reserved + $1, updated_at = now()
			WHERE warehouse_id = $2 AND product_id = $3 AND reserved + $1 <= stock`,
			item.Quantity, warehouseID, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to reserve stock for product %s: %w", item.ProductID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("insufficient stock for product %s: %w", item.ProductID, models.ErrUnprocessable)
		}
	}

	return tx.Commit()
}

// ReleaseStock decrements reserved for every line item (compensation).
func (s *Store) ReleaseStock(ctx context.Context, warehouseID string, items []models.LineItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			UPDATE warehouse_inventory
			SET reserved = GREATEST(reserved - $1, 0), updated_at = now()
			WHERE warehouse_id = $2 AND product_id = $3`,
			item.Quantity, warehouseID, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to release stock for product %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

// CommitStock decrements stock and reserved together for every line item
// of a shipped order, keeping reserved <= stock meaningful over time.
func (s *Store) CommitStock(ctx context.Context, warehouseID string, items []models.LineItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE warehouse_inventory
			SET stock = stock - $1, reserved = GREATEST(reserved - $1, 0), updated_at = now()
			WHERE warehouse_id = $2 AND product_id = $3 AND stock - $1 >= 0`,
			item.Quantity, warehouseID, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to commit stock for product %s: %w", item.ProductID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("stock underflow for product %s: %w", item.ProductID, models.ErrUnprocessable)
		}
	}

	return tx.Commit()
}

// SetStock overwrites the stock level for a record (restocking glue).
func (s *Store) SetStock(ctx context.Context, warehouseID, productID string, stock int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouse_inventory (warehouse_id, product_id, stock, reserved)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (warehouse_id, product_id)
		DO UPDATE SET stock = $3, updated_at = now()`,
		warehouseID, productID, stock)
	return err
}
