package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dispatch-service/internal/models"
)

// fakeStore is an in-memory stand-in for the Postgres store, mirroring
// its transactional semantics: batch operations apply fully or not at
// all, and conditional updates reject instead of violating invariants.
type fakeStore struct {
	mu         sync.Mutex
	stores     map[string]*models.Store
	products   map[string]*models.Product
	warehouses map[string]*models.Warehouse
	orders     map[string]*models.Order
	inventory  map[string]*models.InventoryRecord
	vehicles   map[string]*models.Vehicle
	agents     map[string]*models.DeliveryAgent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stores:     make(map[string]*models.Store),
		products:   make(map[string]*models.Product),
		warehouses: make(map[string]*models.Warehouse),
		orders:     make(map[string]*models.Order),
		inventory:  make(map[string]*models.InventoryRecord),
		vehicles:   make(map[string]*models.Vehicle),
		agents:     make(map[string]*models.DeliveryAgent),
	}
}

func invKey(warehouseID, productID string) string {
	return warehouseID + "|" + productID
}

func (f *fakeStore) GetStore(ctx context.Context, storeID string) (*models.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stores[storeID]
	if !ok {
		return nil, fmt.Errorf("store %s: %w", storeID, models.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (f *fakeStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetWarehouse(ctx context.Context, warehouseID string) (*models.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.warehouses[warehouseID]
	if !ok {
		return nil, fmt.Errorf("warehouse %s: %w", warehouseID, models.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) GetInventoryRecord(ctx context.Context, warehouseID, productID string) (*models.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.inventory[invKey(warehouseID, productID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) GetInventoryByWarehouse(ctx context.Context, warehouseID string) ([]models.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []models.InventoryRecord
	for _, rec := range f.inventory {
		if rec.WarehouseID == warehouseID {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (f *fakeStore) GetAllInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []models.InventoryRecord
	for _, rec := range f.inventory {
		records = append(records, *rec)
	}
	return records, nil
}

func (f *fakeStore) ReserveStock(ctx context.Context, warehouseID string, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		rec, ok := f.inventory[invKey(warehouseID, item.ProductID)]
		if !ok || rec.Reserved+item.Quantity > rec.Stock {
			return fmt.Errorf("insufficient stock for product %s: %w", item.ProductID, models.ErrUnprocessable)
		}
	}
	for _, item := range items {
		f.inventory[invKey(warehouseID, item.ProductID)].Reserved += item.Quantity
	}
	return nil
}

func (f *fakeStore) ReleaseStock(ctx context.Context, warehouseID string, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		rec, ok := f.inventory[invKey(warehouseID, item.ProductID)]
		if !ok {
			continue
		}
		rec.Reserved -= item.Quantity
		if rec.Reserved < 0 {
			rec.Reserved = 0
		}
	}
	return nil
}

func (f *fakeStore) CommitStock(ctx context.Context, warehouseID string, items []models.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		rec, ok := f.inventory[invKey(warehouseID, item.ProductID)]
		if !ok || rec.Stock < item.Quantity || rec.Reserved < item.Quantity {
			return fmt.Errorf("cannot commit %d units of product %s: %w", item.Quantity, item.ProductID, models.ErrUnprocessable)
		}
	}
	for _, item := range items {
		rec := f.inventory[invKey(warehouseID, item.ProductID)]
		rec.Stock -= item.Quantity
		rec.Reserved -= item.Quantity
	}
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	f.orders[order.OrderID] = &cp
	if st, ok := f.stores[order.StoreID]; ok {
		st.OrderedItems = append(st.OrderedItems, order.OrderID)
	}
	return nil
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	o.Status = status
	if status == models.OrderStatusDelivered {
		now := time.Now()
		o.DeliveredAt = &now
	}
	return nil
}

func (f *fakeStore) CancelOrder(ctx context.Context, orderID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	o.Status = models.OrderStatusCanceled
	o.CancellationReason = &reason
	return nil
}

func (f *fakeStore) SetOrderStore(ctx context.Context, orderID, storeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	o.StoreID = storeID
	return nil
}

func (f *fakeStore) GetOrdersByWarehouse(ctx context.Context, warehouseID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		if o.WarehouseID == warehouseID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return orders, nil
}

func (f *fakeStore) AssignAgentToOrder(ctx context.Context, orderID, agentID, orderStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	a, ok := f.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	o.DeliveryAgentID = &agentID
	o.Status = orderStatus
	if !containsOrder(a.CurrentOrders, orderID) {
		a.CurrentOrders = append(a.CurrentOrders, orderID)
	}
	a.Status = models.AgentStatusBusy
	return nil
}

func (f *fakeStore) ClearOrderAgent(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	o.DeliveryAgentID = nil
	return nil
}

func (f *fakeStore) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, models.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) GetVehiclesByWarehouse(ctx context.Context, warehouseID string) ([]models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fleet []models.Vehicle
	for _, v := range f.vehicles {
		if v.WarehouseID == warehouseID {
			fleet = append(fleet, *v)
		}
	}
	sort.Slice(fleet, func(i, j int) bool { return fleet[i].VehicleID < fleet[j].VehicleID })
	return fleet, nil
}

func (f *fakeStore) ApplyVanAssignment(ctx context.Context, vehicleID, orderID string, orderSize int, anchor models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("vehicle %s: %w", vehicleID, models.ErrNotFound)
	}
	if v.CurrentLoad+orderSize > v.Capacity {
		return fmt.Errorf("vehicle %s over capacity: %w", vehicleID, models.ErrUnprocessable)
	}
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if v.CurrentLoad == 0 {
		street, city := anchor.Street, anchor.City
		v.RouteStreet = &street
		v.RouteCity = &city
	}
	v.CurrentLoad += orderSize
	v.Status = models.VehicleStatusInUse
	o.VehicleID = &vehicleID
	o.Status = models.OrderStatusReadyForDelivery
	return nil
}

func (f *fakeStore) AdjustVehicleLoad(ctx context.Context, vehicleID string, delta int, clearAnchor bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("vehicle %s: %w", vehicleID, models.ErrNotFound)
	}
	next := v.CurrentLoad + delta
	if next < 0 || next > v.Capacity {
		return fmt.Errorf("vehicle %s load out of range: %w", vehicleID, models.ErrUnprocessable)
	}
	v.CurrentLoad = next
	if clearAnchor && next == 0 {
		v.RouteStreet = nil
		v.RouteCity = nil
		v.Status = models.VehicleStatusAvailable
	}
	return nil
}

func (f *fakeStore) BindVehicleToAgent(ctx context.Context, vehicleID, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("vehicle %s: %w", vehicleID, models.ErrNotFound)
	}
	a, ok := f.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	for id, other := range f.agents {
		if id != agentID && other.VehicleID != nil && *other.VehicleID == vehicleID {
			return fmt.Errorf("vehicle %s already assigned to agent %s: %w", vehicleID, id, models.ErrConflict)
		}
	}
	v.AgentID = &agentID
	v.Status = models.VehicleStatusInUse
	a.VehicleID = &vehicleID
	return nil
}

func (f *fakeStore) GetAgent(ctx context.Context, agentID string) (*models.DeliveryAgent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	cp := *a
	cp.AssignedRoute = append(models.RouteStops(nil), a.AssignedRoute...)
	return &cp, nil
}

func (f *fakeStore) GetAgentsByWarehouse(ctx context.Context, warehouseID string) ([]models.DeliveryAgent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var agents []models.DeliveryAgent
	for _, a := range f.agents {
		if a.WarehouseID == warehouseID {
			agents = append(agents, *a)
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })
	return agents, nil
}

func (f *fakeStore) SaveAgentRoute(ctx context.Context, agentID string, stops models.RouteStops) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	a.AssignedRoute = stops
	return nil
}

func (f *fakeStore) UpdateAgentRouteProgress(ctx context.Context, agentID string, stops models.RouteStops, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	a.AssignedRoute = stops
	a.Status = status
	return nil
}

// fakePublisher records every published event type in order.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) record(eventType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishOrderConfirmed(ctx context.Context, e *models.OrderConfirmedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishOrderCanceled(ctx context.Context, e *models.OrderCanceledEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishOrderStatus(ctx context.Context, e *models.OrderStatusEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishVanAssigned(ctx context.Context, e *models.VanAssignedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishAgentAssigned(ctx context.Context, e *models.AgentAssignedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishRouteAssigned(ctx context.Context, e *models.RouteAssignedEvent) error {
	return p.record(e.EventType)
}

func strPtr(s string) *string { return &s }
