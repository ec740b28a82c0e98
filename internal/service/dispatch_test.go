package service

import (
	"context"
	"testing"

	"dispatch-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchFixture() (*fakeStore, *DispatchOrchestrator, *fakePublisher) {
	f := newFakeStore()
	f.warehouses["wh-1"] = &models.Warehouse{WarehouseID: "wh-1", Name: "North"}
	f.stores["st-1"] = &models.Store{
		StoreID: "st-1",
		Name:    "Corner Shop",
		Address: models.Address{Street: "Baker Street", City: "London"},
	}

	pub := &fakePublisher{}
	ledger := NewInventoryLedger(f, nil)
	engine := NewVanAssignmentEngine(f, nil, 0)
	return f, NewDispatchOrchestrator(f, ledger, engine, pub, true), pub
}

func stockProduct(f *fakeStore, productID string, price int64, stock int) {
	f.products[productID] = &models.Product{ProductID: productID, WarehouseID: "wh-1", Name: productID, Price: price}
	f.inventory[invKey("wh-1", productID)] = &models.InventoryRecord{
		WarehouseID: "wh-1", ProductID: productID, Stock: stock,
	}
}

func TestCreateOrderTotalAmount(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 100)
	stockProduct(f, "p-2", 5, 100)

	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:     "st-1",
		WarehouseID: "wh-1",
		Items: []OrderItemRequest{
			{ProductID: "p-1", Quantity: 3},
			{ProductID: "p-2", Quantity: 2},
		},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, int64(40), order.TotalAmount)
	assert.Equal(t, int64(10), order.Items[0].UnitPrice)
	assert.Equal(t, "p-1", order.Items[0].ProductID)
}

func TestCreateOrderMissingStoreAborts(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 100)

	_, _, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "ghost",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 1}},
		PaymentMethod: "invoice",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.orders)
}

func TestCreateOrderAppendsToStoreList(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 100)

	order, _, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 1}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	assert.Contains(t, []string(f.stores["st-1"].OrderedItems), order.OrderID)
}

func TestAutoApproveConfirmsAndReserves(t *testing.T) {
	ctx := context.Background()
	f, orch, pub := newDispatchFixture()
	stockProduct(f, "p-1", 10, 5)

	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 5}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	assert.True(t, approved)
	// No van in the fixture, so the order stays confirmed.
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	rec, err := f.GetInventoryRecord(ctx, "wh-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Reserved)
	assert.Contains(t, pub.events, models.EventTypeOrderCreated)
	assert.Contains(t, pub.events, models.EventTypeOrderConfirmed)
}

func TestAutoApproveStarvedOrderCanceled(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 5)

	_, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 5}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	require.True(t, approved)

	// Everything is reserved: the next unit is unavailable.
	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 1}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	assert.False(t, approved)
	assert.Equal(t, models.OrderStatusCanceled, order.Status)
	require.NotNil(t, order.CancellationReason)
	assert.Equal(t, "Insufficient inventory", *order.CancellationReason)

	// No partial reservation left behind.
	rec, err := f.GetInventoryRecord(ctx, "wh-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Reserved)
}

func TestAutoApproveAssignsVanAndAgent(t *testing.T) {
	ctx := context.Background()
	f, orch, pub := newDispatchFixture()
	stockProduct(f, "p-1", 10, 5)
	f.vehicles["v-1"] = &models.Vehicle{
		VehicleID: "v-1", WarehouseID: "wh-1", Capacity: 10,
		Status: models.VehicleStatusAvailable,
	}
	f.agents["a-1"] = &models.DeliveryAgent{
		AgentID: "a-1", WarehouseID: "wh-1", Name: "Sam",
		Status: models.AgentStatusAvailable,
	}

	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 2}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, models.OrderStatusAssigned, order.Status)
	require.NotNil(t, order.VehicleID)
	assert.Equal(t, "v-1", *order.VehicleID)
	require.NotNil(t, order.DeliveryAgentID)
	assert.Equal(t, "a-1", *order.DeliveryAgentID)

	agent, err := f.GetAgent(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusBusy, agent.Status)
	require.NotNil(t, agent.VehicleID)
	assert.Equal(t, "v-1", *agent.VehicleID)
	assert.Contains(t, []string(agent.CurrentOrders), order.OrderID)
	assert.Contains(t, pub.events, models.EventTypeVanAssigned)
	assert.Contains(t, pub.events, models.EventTypeAgentAssigned)
}

func TestUpdateOrderStatusShippedCommitsInventory(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 5)

	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 3}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	require.True(t, approved)

	require.NoError(t, orch.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusShipped))

	rec, err := f.GetInventoryRecord(ctx, "wh-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Stock)
	assert.Equal(t, 0, rec.Reserved)

	updated, err := f.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
}

func TestUpdateOrderStatusRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	f.orders["o-1"] = &models.Order{OrderID: "o-1", WarehouseID: "wh-1", Status: models.OrderStatusDelivered}

	err := orch.UpdateOrderStatus(ctx, "o-1", models.OrderStatusCanceled)
	assert.ErrorIs(t, err, models.ErrUnprocessable)
}

func TestUpdateOrderStatusRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	_, orch, _ := newDispatchFixture()

	err := orch.UpdateOrderStatus(ctx, "o-1", "teleported")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAssignDeliveryAgentPromotesPending(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	f.orders["o-1"] = &models.Order{OrderID: "o-1", WarehouseID: "wh-1", Status: models.OrderStatusPending}
	f.agents["a-1"] = &models.DeliveryAgent{AgentID: "a-1", WarehouseID: "wh-1", Status: models.AgentStatusAvailable}

	require.NoError(t, orch.AssignDeliveryAgent(ctx, "o-1", "a-1"))

	order, err := f.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, order.Status)
	require.NotNil(t, order.DeliveryAgentID)
	assert.Equal(t, "a-1", *order.DeliveryAgentID)

	agent, err := f.GetAgent(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusBusy, agent.Status)
}

func TestUnassignAgentKeepsStatus(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	f.orders["o-1"] = &models.Order{OrderID: "o-1", WarehouseID: "wh-1", Status: models.OrderStatusReadyForDelivery}
	f.agents["a-1"] = &models.DeliveryAgent{AgentID: "a-1", WarehouseID: "wh-1", Status: models.AgentStatusAvailable}

	require.NoError(t, orch.AssignDeliveryAgent(ctx, "o-1", "a-1"))
	require.NoError(t, orch.AssignDeliveryAgent(ctx, "o-1", ""))

	order, err := f.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Nil(t, order.DeliveryAgentID)
	// Unassignment never rolls back progress.
	assert.Equal(t, models.OrderStatusReadyForDelivery, order.Status)
}

func TestDeliveredOrderUnloadsVan(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 5)
	f.vehicles["v-1"] = &models.Vehicle{
		VehicleID: "v-1", WarehouseID: "wh-1", Capacity: 10,
		Status: models.VehicleStatusAvailable,
	}

	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 4}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	require.True(t, approved)

	require.NoError(t, orch.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusShipped))
	require.NoError(t, orch.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusDelivered))

	van, err := f.GetVehicle(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, 0, van.CurrentLoad)
	// Anchor-clearing policy is on in the fixture.
	assert.Nil(t, van.RouteStreet)
	assert.Equal(t, models.VehicleStatusAvailable, van.Status)
}

func TestManualCancelReleasesReservation(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	stockProduct(f, "p-1", 10, 5)

	order, approved, err := orch.CreateOrder(ctx, &CreateOrderRequest{
		StoreID:       "st-1",
		WarehouseID:   "wh-1",
		Items:         []OrderItemRequest{{ProductID: "p-1", Quantity: 3}},
		PaymentMethod: "invoice",
	})
	require.NoError(t, err)
	require.True(t, approved)

	require.NoError(t, orch.UpdateOrderStatus(ctx, order.OrderID, models.OrderStatusCanceled))

	rec, err := f.GetInventoryRecord(ctx, "wh-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Reserved)
	assert.Equal(t, 5, rec.Stock)
}

func TestAssignStoreToOrder(t *testing.T) {
	ctx := context.Background()
	f, orch, _ := newDispatchFixture()
	f.stores["st-2"] = &models.Store{StoreID: "st-2", Name: "Second"}
	f.orders["o-1"] = &models.Order{OrderID: "o-1", StoreID: "st-1", WarehouseID: "wh-1", Status: models.OrderStatusPending}

	require.NoError(t, orch.AssignStoreToOrder(ctx, "o-1", "st-2"))

	order, err := f.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "st-2", order.StoreID)

	err = orch.AssignStoreToOrder(ctx, "o-1", "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
