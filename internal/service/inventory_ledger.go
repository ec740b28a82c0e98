package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch-service/internal/models"
	"dispatch-service/internal/util"

	"go.uber.org/zap"
)

// inventoryStore is the slice of the record store the ledger needs.
type inventoryStore interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetInventoryRecord(ctx context.Context, warehouseID, productID string) (*models.InventoryRecord, error)
	GetInventoryByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryRecord, error)
	GetAllInventory(ctx context.Context) ([]models.InventoryRecord, error)
	ReserveStock(ctx context.Context, warehouseID string, items []models.LineItem) error
	ReleaseStock(ctx context.Context, warehouseID string, items []models.LineItem) error
	CommitStock(ctx context.Context, warehouseID string, items []models.LineItem) error
}

// stockCounters is the Redis-side mirror of the inventory counters. It is
// the fast atomic gate in front of the database; a nil value disables the
// fast path.
type stockCounters interface {
	ReserveStock(ctx context.Context, warehouseID, productID string, quantity int) (ok, mirrored bool, err error)
	ReleaseStock(ctx context.Context, warehouseID, productID string, quantity int) error
	CommitStock(ctx context.Context, warehouseID, productID string, quantity int) error
	InitInventory(ctx context.Context, warehouseID, productID string, stock, reserved int) error
}

// InventoryLedger owns the per-(warehouse, product) stock and reservation
// counters. Reserve and CommitShipment keep 0 <= reserved <= stock after
// every mutation.
type InventoryLedger struct {
	store    inventoryStore
	counters stockCounters
	logger   *zap.Logger
}

// NewInventoryLedger creates a new inventory ledger. counters may be nil,
// in which case every operation goes straight to the database.
func NewInventoryLedger(store inventoryStore, counters stockCounters) *InventoryLedger {
	return &InventoryLedger{
		store:    store,
		counters: counters,
		logger:   util.GetLogger(),
	}
}

// CheckAvailability reports whether every line item is satisfiable from
// the warehouse, short-circuiting on the first shortfall. A missing
// inventory record counts as zero stock; a missing product aborts with
// NotFound. The asymmetry is deliberate: unknown products are a caller
// bug, unstocked products are a normal answer.
func (l *InventoryLedger) CheckAvailability(ctx context.Context, warehouseID string, items []models.LineItem) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.CheckAvailability")
	defer span.End()

	if err := validateLineItems(items); err != nil {
		return false, err
	}

	for _, item := range items {
		if _, err := l.store.GetProduct(ctx, item.ProductID); err != nil {
			return false, err
		}

		rec, err := l.store.GetInventoryRecord(ctx, warehouseID, item.ProductID)
		if err != nil {
			return false, err
		}
		if rec == nil || rec.Available() < item.Quantity {
			return false, nil
		}
	}

	return true, nil
}

// Reserve increments reserved for every line item as one batch. The Redis
// counters act as the atomic gate: each per-item script re-checks
// availability, and a shortfall mid-batch rolls back the increments taken
// so far before the database is touched. The database write is the
// authoritative one.
func (l *InventoryLedger) Reserve(ctx context.Context, warehouseID string, items []models.LineItem) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Reserve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateLineItems(items); err != nil {
		return err
	}

	if l.counters != nil {
		if err := l.reserveCounters(ctx, warehouseID, items); err != nil {
			return err
		}
	}

	if err := l.store.ReserveStock(ctx, warehouseID, items); err != nil {
		if l.counters != nil {
			l.rollbackCounters(ctx, warehouseID, items, len(items))
		}
		if errors.Is(err, models.ErrUnprocessable) {
			util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.InventoryReservationsFailed.WithLabelValues("error").Inc()
		}
		return err
	}

	return nil
}

func (l *InventoryLedger) reserveCounters(ctx context.Context, warehouseID string, items []models.LineItem) error {
	for i, item := range items {
		ok, mirrored, err := l.counters.ReserveStock(ctx, warehouseID, item.ProductID, item.Quantity)
		if err != nil {
			l.logger.Warn("Redis reservation failed, deferring to database",
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			l.rollbackCounters(ctx, warehouseID, items, i)
			return nil
		}
		if !mirrored {
			// Pair not mirrored yet; the database check decides.
			continue
		}
		if !ok {
			l.rollbackCounters(ctx, warehouseID, items, i)
			util.InventoryReservationsFailed.WithLabelValues("insufficient_stock").Inc()
			return fmt.Errorf("insufficient stock for product %s: %w", item.ProductID, models.ErrUnprocessable)
		}
	}
	return nil
}

// rollbackCounters undoes the first n per-item Redis increments.
func (l *InventoryLedger) rollbackCounters(ctx context.Context, warehouseID string, items []models.LineItem, n int) {
	for i := 0; i < n && i < len(items); i++ {
		if err := l.counters.ReleaseStock(ctx, warehouseID, items[i].ProductID, items[i].Quantity); err != nil {
			l.logger.Error("Failed to roll back counter reservation",
				zap.String("product_id", items[i].ProductID),
				zap.Error(err))
		}
	}
}

// Release returns reserved units for every line item (compensation).
func (l *InventoryLedger) Release(ctx context.Context, warehouseID string, items []models.LineItem) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.Release")
	defer span.End()

	if l.counters != nil {
		for _, item := range items {
			if err := l.counters.ReleaseStock(ctx, warehouseID, item.ProductID, item.Quantity); err != nil {
				l.logger.Error("Failed to release stock in Redis",
					zap.String("product_id", item.ProductID),
					zap.Error(err))
			}
		}
	}

	return l.store.ReleaseStock(ctx, warehouseID, items)
}

// CommitShipment decrements stock and reserved together for every line
// item of a shipped order.
func (l *InventoryLedger) CommitShipment(ctx context.Context, order *models.Order) error {
	ctx, span := util.StartSpan(ctx, "InventoryLedger.CommitShipment")
	defer span.End()

	if err := l.store.CommitStock(ctx, order.WarehouseID, order.Items); err != nil {
		return err
	}

	if l.counters != nil {
		for _, item := range order.Items {
			if err := l.counters.CommitStock(ctx, order.WarehouseID, item.ProductID, item.Quantity); err != nil {
				l.logger.Error("Failed to commit stock in Redis",
					zap.String("product_id", item.ProductID),
					zap.Error(err))
			}
		}
	}

	return nil
}

// SyncWarehouseToRedis mirrors a warehouse's inventory records into the
// Redis counters.
func (l *InventoryLedger) SyncWarehouseToRedis(ctx context.Context, warehouseID string) error {
	if l.counters == nil {
		return nil
	}

	records, err := l.store.GetInventoryByWarehouse(ctx, warehouseID)
	if err != nil {
		return fmt.Errorf("failed to load inventory for warehouse %s: %w", warehouseID, err)
	}

	l.mirror(ctx, records)
	l.logger.Info("Inventory mirrored to Redis",
		zap.String("warehouse_id", warehouseID),
		zap.Int("count", len(records)))
	return nil
}

// SyncInventoryToRedis mirrors every inventory record into the Redis
// counters, typically at startup.
func (l *InventoryLedger) SyncInventoryToRedis(ctx context.Context) error {
	if l.counters == nil {
		return nil
	}

	records, err := l.store.GetAllInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}

	l.mirror(ctx, records)
	l.logger.Info("Inventory mirrored to Redis", zap.Int("count", len(records)))
	return nil
}

func (l *InventoryLedger) mirror(ctx context.Context, records []models.InventoryRecord) {
	for _, rec := range records {
		if err := l.counters.InitInventory(ctx, rec.WarehouseID, rec.ProductID, rec.Stock, rec.Reserved); err != nil {
			l.logger.Error("Failed to mirror inventory record",
				zap.String("warehouse_id", rec.WarehouseID),
				zap.String("product_id", rec.ProductID),
				zap.Error(err))
		}
	}
}

// validateLineItems rejects malformed input before any store access.
func validateLineItems(items []models.LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("order has no line items: %w", models.ErrInvalidInput)
	}
	for _, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("line item missing product id: %w", models.ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("non-positive quantity for product %s: %w", item.ProductID, models.ErrInvalidInput)
		}
	}
	return nil
}
