package store

import (
	"context"
	"fmt"

	"dispatch-service/internal/models"
)

// Catalog reads and onboarding glue. The dispatch core only ever reads
// these records; writes exist so a deployment can be seeded end to end.

// CreateStore persists a new store with an empty order list.
func (s *Store) CreateStore(ctx context.Context, st *models.Store) error {
	query := `
		INSERT INTO stores (store_id, name, address, location, ordered_items)
		VALUES ($1, $2, $3, $4, '[]'::jsonb)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		st.StoreID, st.Name, st.Address, st.Location).Scan(&st.CreatedAt, &st.UpdatedAt)
}

// GetStore retrieves a store by ID
func (s *Store) GetStore(ctx context.Context, storeID string) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st, "SELECT * FROM stores WHERE store_id = $1", storeID)
	if err != nil {
		return nil, notFound(err, "store", storeID)
	}
	return &st, nil
}

// CreateWarehouse persists a new warehouse.
func (s *Store) CreateWarehouse(ctx context.Context, w *models.Warehouse) error {
	query := `
		INSERT INTO warehouses (warehouse_id, name, address, location)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		w.WarehouseID, w.Name, w.Address, w.Location).Scan(&w.CreatedAt, &w.UpdatedAt)
}

// GetWarehouse retrieves a warehouse by ID
func (s *Store) GetWarehouse(ctx context.Context, warehouseID string) (*models.Warehouse, error) {
	var w models.Warehouse
	err := s.db.GetContext(ctx, &w, "SELECT * FROM warehouses WHERE warehouse_id = $1", warehouseID)
	if err != nil {
		return nil, notFound(err, "warehouse", warehouseID)
	}
	return &w, nil
}

// CreateProduct persists a product and its zero-reserved inventory record
// in one transaction.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product, initialStock int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (product_id, warehouse_id, name, price)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	if err := tx.QueryRowxContext(ctx, query,
		p.ProductID, p.WarehouseID, p.Name, p.Price).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO warehouse_inventory (warehouse_id, product_id, stock, reserved)
		VALUES ($1, $2, $3, 0)`,
		p.WarehouseID, p.ProductID, initialStock)
	if err != nil {
		return fmt.Errorf("failed to create inventory record: %w", err)
	}

	return tx.Commit()
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, "SELECT * FROM products WHERE product_id = $1", productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	return &p, nil
}

// GetProductsByWarehouse retrieves products stocked by a warehouse
func (s *Store) GetProductsByWarehouse(ctx context.Context, warehouseID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE warehouse_id = $1 ORDER BY product_id", warehouseID)
	return products, err
}

// CreateNotification records a dispatched notification.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (notification_id, order_id, type, message)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return s.db.QueryRowxContext(ctx, query,
		n.NotificationID, n.OrderID, n.Type, n.Message).Scan(&n.CreatedAt)
}
