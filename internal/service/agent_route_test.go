package service

import (
	"context"
	"testing"

	"dispatch-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouteFixture() (*fakeStore, *AgentRouteService) {
	f := newFakeStore()
	f.warehouses["wh-1"] = &models.Warehouse{
		WarehouseID: "wh-1",
		Name:        "North",
		Location:    models.GeoPoint{Latitude: 0, Longitude: 0},
	}
	f.stores["st-near"] = &models.Store{
		StoreID:  "st-near",
		Name:     "Near Shop",
		Address:  models.Address{Street: "First Avenue", City: "London"},
		Location: models.GeoPoint{Latitude: 0, Longitude: 1},
	}
	f.stores["st-far"] = &models.Store{
		StoreID:  "st-far",
		Name:     "Far Shop",
		Address:  models.Address{Street: "Last Lane", City: "London"},
		Location: models.GeoPoint{Latitude: 0, Longitude: 3},
	}
	f.agents["a-1"] = &models.DeliveryAgent{
		AgentID:     "a-1",
		WarehouseID: "wh-1",
		Name:        "Sam",
		Status:      models.AgentStatusBusy,
	}
	return f, NewAgentRouteService(f, nil)
}

func TestAssignStoresToRouteNearestFirst(t *testing.T) {
	ctx := context.Background()
	f, svc := newRouteFixture()
	f.orders["o-1"] = &models.Order{OrderID: "o-1", StoreID: "st-far", WarehouseID: "wh-1", Status: models.OrderStatusConfirmed}
	f.orders["o-2"] = &models.Order{OrderID: "o-2", StoreID: "st-near", WarehouseID: "wh-1", Status: models.OrderStatusReadyForDelivery}

	stops, err := svc.AssignStoresToRoute(ctx, "a-1", "wh-1")
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "st-near", stops[0].StoreID)
	assert.Equal(t, "st-far", stops[1].StoreID)
	assert.Equal(t, []string{"o-2"}, stops[0].OrderIDs)
	assert.Equal(t, []string{"o-1"}, stops[1].OrderIDs)

	agent, err := f.GetAgent(ctx, "a-1")
	require.NoError(t, err)
	assert.Len(t, agent.AssignedRoute, 2)
}

func TestAssignStoresToRouteGroupsOrdersByStore(t *testing.T) {
	ctx := context.Background()
	f, svc := newRouteFixture()
	f.orders["o-1"] = &models.Order{OrderID: "o-1", StoreID: "st-near", WarehouseID: "wh-1", Status: models.OrderStatusConfirmed}
	f.orders["o-2"] = &models.Order{OrderID: "o-2", StoreID: "st-near", WarehouseID: "wh-1", Status: models.OrderStatusAssigned}
	f.orders["o-3"] = &models.Order{OrderID: "o-3", StoreID: "st-near", WarehouseID: "wh-1", Status: models.OrderStatusDelivered}

	stops, err := svc.AssignStoresToRoute(ctx, "a-1", "wh-1")
	require.NoError(t, err)
	require.Len(t, stops, 1)
	// Delivered orders are not routed.
	assert.ElementsMatch(t, []string{"o-1", "o-2"}, stops[0].OrderIDs)
}

func TestAssignStoresToRouteUsesVehicleLocation(t *testing.T) {
	ctx := context.Background()
	f, svc := newRouteFixture()
	// The vehicle sits right next to the far store, flipping the visit order.
	f.vehicles["v-1"] = &models.Vehicle{
		VehicleID:   "v-1",
		WarehouseID: "wh-1",
		Capacity:    10,
		CurrentLocation: models.NullPoint{
			Point: models.GeoPoint{Latitude: 0, Longitude: 3.1},
			Valid: true,
		},
	}
	f.agents["a-1"].VehicleID = strPtr("v-1")
	f.orders["o-1"] = &models.Order{OrderID: "o-1", StoreID: "st-far", WarehouseID: "wh-1", Status: models.OrderStatusConfirmed}
	f.orders["o-2"] = &models.Order{OrderID: "o-2", StoreID: "st-near", WarehouseID: "wh-1", Status: models.OrderStatusConfirmed}

	stops, err := svc.AssignStoresToRoute(ctx, "a-1", "wh-1")
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "st-far", stops[0].StoreID)
	assert.Equal(t, "st-near", stops[1].StoreID)
}

func TestUpdateDeliveryProgress(t *testing.T) {
	ctx := context.Background()
	f, svc := newRouteFixture()
	f.agents["a-1"].AssignedRoute = models.RouteStops{
		{StoreID: "st-near", OrderIDs: []string{"o-1"}},
		{StoreID: "st-far", OrderIDs: []string{"o-2"}},
	}

	require.NoError(t, svc.UpdateDeliveryProgress(ctx, "a-1", "o-1"))

	agent, err := f.GetAgent(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, agent.AssignedRoute[0].Completed)
	assert.NotNil(t, agent.AssignedRoute[0].CompletedAt)
	assert.False(t, agent.AssignedRoute[1].Completed)
	assert.Equal(t, models.AgentStatusBusy, agent.Status)

	require.NoError(t, svc.UpdateDeliveryProgress(ctx, "a-1", "o-2"))

	agent, err = f.GetAgent(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, agent.AssignedRoute[1].Completed)
	assert.Equal(t, models.AgentStatusAvailable, agent.Status)
}

func TestGetAgentRouteDefaultsEmpty(t *testing.T) {
	ctx := context.Background()
	_, svc := newRouteFixture()

	stops, err := svc.GetAgentRoute(ctx, "a-1")
	require.NoError(t, err)
	assert.NotNil(t, stops)
	assert.Empty(t, stops)
}

func TestGetAgentRouteIdempotent(t *testing.T) {
	ctx := context.Background()
	f, svc := newRouteFixture()
	f.orders["o-1"] = &models.Order{OrderID: "o-1", StoreID: "st-near", WarehouseID: "wh-1", Status: models.OrderStatusConfirmed}

	_, err := svc.AssignStoresToRoute(ctx, "a-1", "wh-1")
	require.NoError(t, err)

	first, err := svc.GetAgentRoute(ctx, "a-1")
	require.NoError(t, err)
	second, err := svc.GetAgentRoute(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
