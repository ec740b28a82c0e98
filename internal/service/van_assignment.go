package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dispatch-service/internal/models"
	"dispatch-service/internal/util"

	"go.uber.org/zap"
)

// fleetStore is the slice of the record store the engine needs.
type fleetStore interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetStore(ctx context.Context, storeID string) (*models.Store, error)
	GetVehiclesByWarehouse(ctx context.Context, warehouseID string) ([]models.Vehicle, error)
	ApplyVanAssignment(ctx context.Context, vehicleID, orderID string, orderSize int, anchor models.Address) error
}

// vehicleLocker serializes assignment per vehicle. nil disables locking;
// the conditional load update in the store still prevents overfill.
type vehicleLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// VanAssignmentEngine selects a van for a confirmed order by capacity
// headroom and route affinity. First-fit by fleet iteration order, not
// globally optimal bin-packing: per-warehouse fleets are small.
type VanAssignmentEngine struct {
	store   fleetStore
	locks   vehicleLocker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewVanAssignmentEngine creates a new van assignment engine
func NewVanAssignmentEngine(store fleetStore, locks vehicleLocker, lockTTL time.Duration) *VanAssignmentEngine {
	return &VanAssignmentEngine{
		store:   store,
		locks:   locks,
		lockTTL: lockTTL,
		logger:  util.GetLogger(),
	}
}

// AssignOrderToVan binds a van to the order and moves the order to
// ready_for_delivery. Selection rule, in order: capacity headroom must
// cover the order size; an empty van (no anchor or zero load) wins first;
// otherwise a van whose anchor street or city matches the store's address
// (case-insensitive). No candidate leaves the order confirmed and returns
// an unprocessable error so the caller can retry later.
func (e *VanAssignmentEngine) AssignOrderToVan(ctx context.Context, orderID, warehouseID string) (*models.Vehicle, error) {
	ctx, span := util.StartSpan(ctx, "VanAssignmentEngine.AssignOrderToVan")
	defer span.End()

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	store, err := e.store.GetStore(ctx, order.StoreID)
	if err != nil {
		return nil, err
	}
	if store.Address.Street == "" && store.Address.City == "" {
		return nil, fmt.Errorf("store %s has no address: %w", store.StoreID, models.ErrUnprocessable)
	}

	orderSize := order.Size()
	if orderSize <= 0 {
		return nil, fmt.Errorf("order %s has zero size: %w", orderID, models.ErrInvalidInput)
	}

	fleet, err := e.store.GetVehiclesByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Vehicle, 0, len(fleet))
	for _, van := range fleet {
		if van.Status == models.VehicleStatusMaintenance {
			continue
		}
		if van.Headroom() < orderSize {
			continue
		}
		candidates = append(candidates, van)
	}

	for i := range candidates {
		van := &candidates[i]
		if !e.suitable(van, store) {
			continue
		}

		locked, err := e.tryLock(ctx, van.VehicleID)
		if err != nil {
			return nil, err
		}
		if !locked {
			// Another assignment holds this van; keep scanning.
			continue
		}

		err = e.store.ApplyVanAssignment(ctx, van.VehicleID, orderID, orderSize, store.Address)
		e.unlock(ctx, van.VehicleID)
		if err != nil {
			util.VanAssignmentsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		util.VanAssignmentsTotal.WithLabelValues("assigned").Inc()
		e.logger.Info("Order assigned to van",
			zap.String("order_id", orderID),
			zap.String("vehicle_id", van.VehicleID),
			zap.Int("order_size", orderSize))
		return van, nil
	}

	util.VanAssignmentsTotal.WithLabelValues("no_van").Inc()
	return nil, fmt.Errorf("no suitable van for order %s: %w", orderID, models.ErrUnprocessable)
}

// suitable applies the empty-van and route-affinity preferences to one
// capacity-eligible candidate.
func (e *VanAssignmentEngine) suitable(van *models.Vehicle, store *models.Store) bool {
	if !van.HasAnchor() || van.CurrentLoad == 0 {
		return true
	}

	vanStreet := strValue(van.RouteStreet)
	vanCity := strValue(van.RouteCity)
	return (vanStreet != "" && strings.EqualFold(vanStreet, store.Address.Street)) ||
		(vanCity != "" && strings.EqualFold(vanCity, store.Address.City))
}

func (e *VanAssignmentEngine) tryLock(ctx context.Context, vehicleID string) (bool, error) {
	if e.locks == nil {
		return true, nil
	}
	return e.locks.AcquireLock(ctx, "vehicle:"+vehicleID, e.lockTTL)
}

func (e *VanAssignmentEngine) unlock(ctx context.Context, vehicleID string) {
	if e.locks == nil {
		return
	}
	if err := e.locks.ReleaseLock(ctx, "vehicle:"+vehicleID); err != nil {
		e.logger.Warn("Failed to release vehicle lock",
			zap.String("vehicle_id", vehicleID),
			zap.Error(err))
	}
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
