package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch-service/internal/models"
	"dispatch-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dispatchStore is the slice of the record store the orchestrator needs.
type dispatchStore interface {
	GetStore(ctx context.Context, storeID string) (*models.Store, error)
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	GetWarehouse(ctx context.Context, warehouseID string) (*models.Warehouse, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	CancelOrder(ctx context.Context, orderID, reason string) error
	SetOrderStore(ctx context.Context, orderID, storeID string) error
	GetAgentsByWarehouse(ctx context.Context, warehouseID string) ([]models.DeliveryAgent, error)
	AssignAgentToOrder(ctx context.Context, orderID, agentID, orderStatus string) error
	ClearOrderAgent(ctx context.Context, orderID string) error
	BindVehicleToAgent(ctx context.Context, vehicleID, agentID string) error
	AdjustVehicleLoad(ctx context.Context, vehicleID string, delta int, clearAnchor bool) error
}

// ledger is the orchestrator's view of the inventory counters.
type ledger interface {
	CheckAvailability(ctx context.Context, warehouseID string, items []models.LineItem) (bool, error)
	Reserve(ctx context.Context, warehouseID string, items []models.LineItem) error
	Release(ctx context.Context, warehouseID string, items []models.LineItem) error
	CommitShipment(ctx context.Context, order *models.Order) error
}

// vanAssigner binds a van to a confirmed order.
type vanAssigner interface {
	AssignOrderToVan(ctx context.Context, orderID, warehouseID string) (*models.Vehicle, error)
}

// dispatchPublisher emits notification events. Publishing is
// fire-and-forget: failures are logged, never propagated.
type dispatchPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderCanceled(ctx context.Context, event *models.OrderCanceledEvent) error
	PublishOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error
	PublishVanAssigned(ctx context.Context, event *models.VanAssignedEvent) error
	PublishAgentAssigned(ctx context.Context, event *models.AgentAssignedEvent) error
}

// DispatchOrchestrator drives the order lifecycle: creation,
// auto-approval, van assignment, agent assignment and status transitions.
type DispatchOrchestrator struct {
	store     dispatchStore
	inventory ledger
	vans      vanAssigner
	publisher dispatchPublisher
	// clearAnchorOnEmpty drops a van's route anchor once unloading
	// brings its load back to zero.
	clearAnchorOnEmpty bool
	logger             *zap.Logger
}

// NewDispatchOrchestrator creates a new dispatch orchestrator
func NewDispatchOrchestrator(
	store dispatchStore,
	inventory ledger,
	vans vanAssigner,
	publisher dispatchPublisher,
	clearAnchorOnEmpty bool,
) *DispatchOrchestrator {
	return &DispatchOrchestrator{
		store:              store,
		inventory:          inventory,
		vans:               vans,
		publisher:          publisher,
		clearAnchorOnEmpty: clearAnchorOnEmpty,
		logger:             util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	StoreID               string             `json:"store_id" binding:"required"`
	WarehouseID           string             `json:"warehouse_id" binding:"required"`
	Items                 []OrderItemRequest `json:"items" binding:"required,min=1"`
	PaymentMethod         string             `json:"payment_method" binding:"required"`
	EstimatedDeliveryTime *time.Time         `json:"estimated_delivery_time,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrder validates the order, captures current product prices,
// persists the order as pending and immediately attempts auto-approval:
// a newly created order never stays silently pending when it could be
// approved. Approved reports the auto-approval outcome.
func (d *DispatchOrchestrator) CreateOrder(ctx context.Context, req *CreateOrderRequest) (order *models.Order, approved bool, err error) {
	ctx, span := util.StartSpan(ctx, "DispatchOrchestrator.CreateOrder")
	defer span.End()

	items := make(models.LineItems, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if err := validateLineItems(items); err != nil {
		return nil, false, err
	}

	if _, err := d.store.GetStore(ctx, req.StoreID); err != nil {
		return nil, false, err
	}
	if _, err := d.store.GetWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, false, err
	}

	// Prices are captured now and never recomputed after creation.
	var totalAmount int64
	for i := range items {
		product, err := d.store.GetProduct(ctx, items[i].ProductID)
		if err != nil {
			return nil, false, err
		}
		items[i].Name = product.Name
		items[i].UnitPrice = product.Price
		totalAmount += product.Price * int64(items[i].Quantity)
	}

	order = &models.Order{
		OrderID:               uuid.New().String(),
		StoreID:               req.StoreID,
		WarehouseID:           req.WarehouseID,
		Items:                 items,
		TotalAmount:           totalAmount,
		Status:                models.OrderStatusPending,
		PaymentMethod:         req.PaymentMethod,
		EstimatedDeliveryTime: req.EstimatedDeliveryTime,
	}

	if err := d.store.CreateOrder(ctx, order); err != nil {
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	d.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("store_id", order.StoreID),
		zap.Int64("total_amount", order.TotalAmount))

	d.publish(ctx, "PublishOrderCreated", func(ctx context.Context) error {
		return d.publisher.PublishOrderCreated(ctx, &models.OrderCreatedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
			OrderID:     order.OrderID,
			StoreID:     order.StoreID,
			WarehouseID: order.WarehouseID,
			TotalAmount: order.TotalAmount,
			Items:       order.Items,
		})
	})

	approved, err = d.AutoApprove(ctx, order.OrderID)
	if err != nil {
		return order, false, err
	}

	// Reload so the caller sees the post-approval state.
	refreshed, err := d.store.GetOrder(ctx, order.OrderID)
	if err != nil {
		return order, approved, err
	}
	return refreshed, approved, nil
}

// AutoApprove is the confirm-or-cancel decision made right after order
// creation. Insufficient inventory is not an error: the order lands in
// the terminal canceled state and false is returned.
func (d *DispatchOrchestrator) AutoApprove(ctx context.Context, orderID string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "DispatchOrchestrator.AutoApprove")
	defer span.End()

	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}

	available, err := d.inventory.CheckAvailability(ctx, order.WarehouseID, order.Items)
	if err != nil {
		return false, err
	}
	if !available {
		return false, d.cancelForInventory(ctx, order)
	}

	if err := d.inventory.Reserve(ctx, order.WarehouseID, order.Items); err != nil {
		if errors.Is(err, models.ErrUnprocessable) {
			// Lost the race between check and reserve; same terminal
			// outcome as an availability miss, with nothing reserved.
			return false, d.cancelForInventory(ctx, order)
		}
		return false, err
	}

	if err := d.store.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusConfirmed); err != nil {
		return false, err
	}
	util.OrdersConfirmedTotal.Inc()
	d.logger.Info("Order confirmed", zap.String("order_id", order.OrderID))

	d.publish(ctx, "PublishOrderConfirmed", func(ctx context.Context) error {
		return d.publisher.PublishOrderConfirmed(ctx, &models.OrderConfirmedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderConfirmed),
			OrderID:     order.OrderID,
			StoreID:     order.StoreID,
			WarehouseID: order.WarehouseID,
		})
	})

	van, err := d.vans.AssignOrderToVan(ctx, order.OrderID, order.WarehouseID)
	if err != nil {
		// The order stays confirmed; assignment can be retried later.
		d.logger.Warn("Van assignment deferred",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
		return true, nil
	}

	d.publish(ctx, "PublishVanAssigned", func(ctx context.Context) error {
		return d.publisher.PublishVanAssigned(ctx, &models.VanAssignedEvent{
			BaseEvent: newBaseEvent(models.EventTypeVanAssigned),
			OrderID:   order.OrderID,
			VehicleID: van.VehicleID,
			OrderSize: order.Size(),
		})
	})

	d.bindFirstAvailableAgent(ctx, order, van)
	return true, nil
}

// cancelForInventory recovers an availability miss into the terminal
// canceled state.
func (d *DispatchOrchestrator) cancelForInventory(ctx context.Context, order *models.Order) error {
	if err := d.store.CancelOrder(ctx, order.OrderID, models.CancelReasonInsufficientInventory); err != nil {
		return err
	}

	util.OrdersCanceledTotal.WithLabelValues("insufficient_inventory").Inc()
	d.logger.Info("Order canceled: insufficient inventory",
		zap.String("order_id", order.OrderID),
		zap.String("warehouse_id", order.WarehouseID))

	d.publish(ctx, "PublishOrderCanceled", func(ctx context.Context) error {
		return d.publisher.PublishOrderCanceled(ctx, &models.OrderCanceledEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderCanceled),
			OrderID:   order.OrderID,
			Reason:    models.CancelReasonInsufficientInventory,
		})
	})
	return nil
}

// bindFirstAvailableAgent picks the first available agent in the
// warehouse, binds the assigned van to it and attaches the order. Agent
// scarcity is not a failure: the order stays ready_for_delivery.
func (d *DispatchOrchestrator) bindFirstAvailableAgent(ctx context.Context, order *models.Order, van *models.Vehicle) {
	agents, err := d.store.GetAgentsByWarehouse(ctx, order.WarehouseID)
	if err != nil {
		d.logger.Warn("Agent lookup failed", zap.String("order_id", order.OrderID), zap.Error(err))
		return
	}

	for _, agent := range agents {
		if agent.Status != models.AgentStatusAvailable {
			continue
		}

		if err := d.store.BindVehicleToAgent(ctx, van.VehicleID, agent.AgentID); err != nil {
			d.logger.Warn("Vehicle binding failed",
				zap.String("vehicle_id", van.VehicleID),
				zap.String("agent_id", agent.AgentID),
				zap.Error(err))
			continue
		}

		if err := d.store.AssignAgentToOrder(ctx, order.OrderID, agent.AgentID, models.OrderStatusAssigned); err != nil {
			d.logger.Warn("Agent assignment failed",
				zap.String("order_id", order.OrderID),
				zap.String("agent_id", agent.AgentID),
				zap.Error(err))
			return
		}

		util.AgentAssignmentsTotal.Inc()
		d.publish(ctx, "PublishAgentAssigned", func(ctx context.Context) error {
			return d.publisher.PublishAgentAssigned(ctx, &models.AgentAssignedEvent{
				BaseEvent: newBaseEvent(models.EventTypeAgentAssigned),
				OrderID:   order.OrderID,
				AgentID:   agent.AgentID,
			})
		})
		return
	}

	d.logger.Info("No available agent; order awaits assignment",
		zap.String("order_id", order.OrderID))
}

// UpdateOrderStatus overwrites an order's status for manual operations.
// A transition to shipped commits the inventory decrement as a side
// effect. Delivered and canceled are terminal.
func (d *DispatchOrchestrator) UpdateOrderStatus(ctx context.Context, orderID, newStatus string) error {
	ctx, span := util.StartSpan(ctx, "DispatchOrchestrator.UpdateOrderStatus")
	defer span.End()

	if !models.ValidOrderStatus(newStatus) {
		return fmt.Errorf("unknown order status %q: %w", newStatus, models.ErrInvalidInput)
	}

	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusDelivered || order.Status == models.OrderStatusCanceled {
		return fmt.Errorf("order %s is already %s: %w", orderID, order.Status, models.ErrUnprocessable)
	}

	if newStatus == models.OrderStatusCanceled {
		if err := d.store.CancelOrder(ctx, orderID, "Canceled by operator"); err != nil {
			return err
		}
		util.OrdersCanceledTotal.WithLabelValues("manual").Inc()
		d.compensateCancel(ctx, order)
	} else {
		if err := d.store.UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
			return err
		}
	}

	switch newStatus {
	case models.OrderStatusShipped:
		if err := d.inventory.CommitShipment(ctx, order); err != nil {
			return fmt.Errorf("failed to commit shipment for order %s: %w", orderID, err)
		}
		util.OrdersShippedTotal.Inc()
	case models.OrderStatusDelivered:
		d.unloadVan(ctx, order)
		util.OrdersDeliveredTotal.Inc()
	}

	d.publish(ctx, "PublishOrderStatus", func(ctx context.Context) error {
		return d.publisher.PublishOrderStatus(ctx, &models.OrderStatusEvent{
			BaseEvent: newBaseEvent(statusEventType(newStatus)),
			OrderID:   orderID,
			Status:    newStatus,
		})
	})

	d.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", newStatus))
	return nil
}

// compensateCancel undoes a canceled order's side effects: reserved
// units return to the pool and a loaded van is unloaded. Both are
// best-effort; a failed compensation is logged for reconciliation.
func (d *DispatchOrchestrator) compensateCancel(ctx context.Context, order *models.Order) {
	switch order.Status {
	case models.OrderStatusConfirmed, models.OrderStatusReadyForDelivery, models.OrderStatusAssigned:
		if err := d.inventory.Release(ctx, order.WarehouseID, order.Items); err != nil {
			d.logger.Error("Failed to release reservation for canceled order",
				zap.String("order_id", order.OrderID),
				zap.Error(err))
		}
	}
	d.unloadVan(ctx, order)
}

// unloadVan returns the order's size to its van, if one was bound.
func (d *DispatchOrchestrator) unloadVan(ctx context.Context, order *models.Order) {
	if order.VehicleID == nil {
		return
	}
	if err := d.store.AdjustVehicleLoad(ctx, *order.VehicleID, -order.Size(), d.clearAnchorOnEmpty); err != nil {
		d.logger.Error("Failed to unload vehicle",
			zap.String("order_id", order.OrderID),
			zap.String("vehicle_id", *order.VehicleID),
			zap.Error(err))
	}
}

// AssignDeliveryAgent binds an agent to the order, or clears the binding
// when agentID is empty. Assignment promotes a pending order straight to
// shipped (long-standing manual-dispatch behavior); unassignment never
// rolls back progress.
func (d *DispatchOrchestrator) AssignDeliveryAgent(ctx context.Context, orderID, agentID string) error {
	ctx, span := util.StartSpan(ctx, "DispatchOrchestrator.AssignDeliveryAgent")
	defer span.End()

	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if agentID == "" {
		return d.store.ClearOrderAgent(ctx, orderID)
	}

	newStatus := order.Status
	if order.Status == models.OrderStatusPending {
		newStatus = models.OrderStatusShipped
	}

	if err := d.store.AssignAgentToOrder(ctx, orderID, agentID, newStatus); err != nil {
		return err
	}

	util.AgentAssignmentsTotal.Inc()
	d.publish(ctx, "PublishAgentAssigned", func(ctx context.Context) error {
		return d.publisher.PublishAgentAssigned(ctx, &models.AgentAssignedEvent{
			BaseEvent: newBaseEvent(models.EventTypeAgentAssigned),
			OrderID:   orderID,
			AgentID:   agentID,
		})
	})
	return nil
}

// AssignStoreToOrder picks exactly one store for an order created with a
// set of candidate stores.
func (d *DispatchOrchestrator) AssignStoreToOrder(ctx context.Context, orderID, storeID string) error {
	ctx, span := util.StartSpan(ctx, "DispatchOrchestrator.AssignStoreToOrder")
	defer span.End()

	if _, err := d.store.GetStore(ctx, storeID); err != nil {
		return err
	}
	return d.store.SetOrderStore(ctx, orderID, storeID)
}

// AssignVan retries van assignment for an order left confirmed by an
// earlier attempt.
func (d *DispatchOrchestrator) AssignVan(ctx context.Context, orderID string) (*models.Vehicle, error) {
	ctx, span := util.StartSpan(ctx, "DispatchOrchestrator.AssignVan")
	defer span.End()

	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	van, err := d.vans.AssignOrderToVan(ctx, order.OrderID, order.WarehouseID)
	if err != nil {
		return nil, err
	}

	d.publish(ctx, "PublishVanAssigned", func(ctx context.Context) error {
		return d.publisher.PublishVanAssigned(ctx, &models.VanAssignedEvent{
			BaseEvent: newBaseEvent(models.EventTypeVanAssigned),
			OrderID:   order.OrderID,
			VehicleID: van.VehicleID,
			OrderSize: order.Size(),
		})
	})
	return van, nil
}

// publish runs a fire-and-forget event publication.
func (d *DispatchOrchestrator) publish(ctx context.Context, name string, fn func(context.Context) error) {
	if d.publisher == nil {
		return
	}
	if err := fn(ctx); err != nil {
		d.logger.Error("Failed to publish event", zap.String("event", name), zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func statusEventType(status string) string {
	switch status {
	case models.OrderStatusShipped:
		return models.EventTypeOrderShipped
	case models.OrderStatusDelivered:
		return models.EventTypeOrderDelivered
	case models.OrderStatusCanceled:
		return models.EventTypeOrderCanceled
	default:
		return models.EventTypeOrderConfirmed
	}
}
