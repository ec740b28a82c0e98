package models

import "time"

// Event types published on the dispatch topic. Consumers record
// notifications; none of these events are required for pipeline
// correctness.
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeOrderCanceled  = "ORDER_CANCELED"
	EventTypeOrderShipped   = "ORDER_SHIPPED"
	EventTypeOrderDelivered = "ORDER_DELIVERED"
	EventTypeVanAssigned    = "VAN_ASSIGNED"
	EventTypeAgentAssigned  = "AGENT_ASSIGNED"
	EventTypeRouteAssigned  = "ROUTE_ASSIGNED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is persisted as pending
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string     `json:"order_id"`
	StoreID     string     `json:"store_id"`
	WarehouseID string     `json:"warehouse_id"`
	TotalAmount int64      `json:"total_amount"`
	Items       []LineItem `json:"items"`
}

// OrderConfirmedEvent published when auto-approval reserves inventory
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	StoreID     string `json:"store_id"`
	WarehouseID string `json:"warehouse_id"`
}

// OrderCanceledEvent published when an order reaches the canceled state
type OrderCanceledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderStatusEvent published on manual status transitions (shipped, delivered)
type OrderStatusEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// VanAssignedEvent published when a van is bound to an order
type VanAssignedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	VehicleID string `json:"vehicle_id"`
	OrderSize int    `json:"order_size"`
}

// AgentAssignedEvent published when a delivery agent is bound to an order
type AgentAssignedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	AgentID string `json:"agent_id"`
}

// RouteAssignedEvent published when an agent receives an optimized route
type RouteAssignedEvent struct {
	BaseEvent
	AgentID   string `json:"agent_id"`
	StopCount int    `json:"stop_count"`
}
