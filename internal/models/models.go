package models

import "time"

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is a postal address attached to stores and warehouses.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// LineItem is one ordered product line. UnitPrice is captured at order
// creation time and never re-read from the catalog afterwards.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order represents a store's order fulfilled by a warehouse
type Order struct {
	OrderID               string     `db:"order_id" json:"order_id"`
	StoreID               string     `db:"store_id" json:"store_id"`
	WarehouseID           string     `db:"warehouse_id" json:"warehouse_id"`
	Items                 LineItems  `db:"items" json:"items"`
	TotalAmount           int64      `db:"total_amount" json:"total_amount"`
	Status                string     `db:"status" json:"status"`
	PaymentMethod         string     `db:"payment_method" json:"payment_method"`
	EstimatedDeliveryTime *time.Time `db:"estimated_delivery_time" json:"estimated_delivery_time,omitempty"`
	DeliveryAgentID       *string    `db:"delivery_agent_id" json:"delivery_agent_id,omitempty"`
	VehicleID             *string    `db:"vehicle_id" json:"vehicle_id,omitempty"`
	CancellationReason    *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	DeliveredAt           *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

// Size returns the order size in load units (sum of line quantities).
func (o *Order) Size() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// InventoryRecord tracks stock for one (warehouse, product) pair.
// Invariant: 0 <= reserved <= stock after every mutation.
type InventoryRecord struct {
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	ProductID   string    `db:"product_id" json:"product_id"`
	Stock       int       `db:"stock" json:"stock"`
	Reserved    int       `db:"reserved" json:"reserved"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Available returns units not yet committed to unfulfilled orders.
func (r *InventoryRecord) Available() int {
	return r.Stock - r.Reserved
}

// Vehicle is a delivery van owned by a warehouse. RouteStreet/RouteCity
// form the route anchor; both nil means the van is unconstrained.
// Invariant: 0 <= current_load <= capacity.
type Vehicle struct {
	VehicleID       string    `db:"vehicle_id" json:"vehicle_id"`
	WarehouseID     string    `db:"warehouse_id" json:"warehouse_id"`
	VehicleType     string    `db:"vehicle_type" json:"vehicle_type"`
	Capacity        int       `db:"capacity" json:"capacity"`
	CurrentLoad     int       `db:"current_load" json:"current_load"`
	RouteStreet     *string   `db:"route_street" json:"route_street,omitempty"`
	RouteCity       *string   `db:"route_city" json:"route_city,omitempty"`
	Status          string    `db:"status" json:"status"`
	AgentID         *string   `db:"agent_id" json:"agent_id,omitempty"`
	CurrentLocation NullPoint `db:"current_location" json:"current_location"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Headroom returns remaining load capacity in units.
func (v *Vehicle) Headroom() int {
	return v.Capacity - v.CurrentLoad
}

// HasAnchor reports whether the van currently has a route anchor.
func (v *Vehicle) HasAnchor() bool {
	return v.RouteStreet != nil || v.RouteCity != nil
}

// DeliveryAgent is a person bound 1:1 to a vehicle, carrying an ordered
// route of stops.
type DeliveryAgent struct {
	AgentID       string     `db:"agent_id" json:"agent_id"`
	WarehouseID   string     `db:"warehouse_id" json:"warehouse_id"`
	Name          string     `db:"name" json:"name"`
	VehicleID     *string    `db:"vehicle_id" json:"vehicle_id,omitempty"`
	CurrentOrders StringList `db:"current_orders" json:"current_orders"`
	Status        string     `db:"status" json:"status"`
	AssignedRoute RouteStops `db:"assigned_route" json:"assigned_route"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// RouteStop is one store visit in an agent's assigned route, aggregating
// every order bound for that store. The slice it lives in is ordered: it
// is the visit sequence.
type RouteStop struct {
	StoreID                string     `json:"store_id"`
	StoreName              string     `json:"store_name"`
	Address                Address    `json:"address"`
	Location               GeoPoint   `json:"location"`
	OrderIDs               []string   `json:"order_ids"`
	DistanceFromPreviousKm float64    `json:"distance_from_previous_km"`
	EstimatedArrival       time.Time  `json:"estimated_arrival"`
	Completed              bool       `json:"completed"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// Store is a retail store that places orders against a warehouse.
type Store struct {
	StoreID      string     `db:"store_id" json:"store_id"`
	Name         string     `db:"name" json:"name"`
	Address      Address    `db:"address" json:"address"`
	Location     GeoPoint   `db:"location" json:"location"`
	OrderedItems StringList `db:"ordered_items" json:"ordered_items"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Product is a catalog entry stocked by a warehouse.
type Product struct {
	ProductID   string    `db:"product_id" json:"product_id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Name        string    `db:"name" json:"name"`
	Price       int64     `db:"price" json:"price"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Warehouse is a fulfillment center owning inventory, vehicles and agents.
type Warehouse struct {
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Name        string    `db:"name" json:"name"`
	Address     Address   `db:"address" json:"address"`
	Location    GeoPoint  `db:"location" json:"location"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Notification records a dispatched notification. Delivery is
// fire-and-forget; failures never affect the dispatch pipeline.
type Notification struct {
	NotificationID string    `db:"notification_id" json:"notification_id"`
	OrderID        string    `db:"order_id" json:"order_id"`
	Type           string    `db:"type" json:"type"`
	Message        string    `db:"message" json:"message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending          = "pending"
	OrderStatusConfirmed        = "confirmed"
	OrderStatusReadyForDelivery = "ready_for_delivery"
	OrderStatusAssigned         = "assigned"
	OrderStatusShipped          = "shipped"
	OrderStatusDelivered        = "delivered"
	OrderStatusCanceled         = "canceled"
)

// Vehicle statuses
const (
	VehicleStatusAvailable   = "available"
	VehicleStatusInUse       = "in_use"
	VehicleStatusMaintenance = "maintenance"
)

// Agent statuses
const (
	AgentStatusAvailable = "available"
	AgentStatusBusy      = "busy"
)

// CancelReasonInsufficientInventory is set on orders auto-canceled because
// the warehouse could not cover every line item.
const CancelReasonInsufficientInventory = "Insufficient inventory"

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusReadyForDelivery,
		OrderStatusAssigned, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}
