package service

import (
	"context"
	"time"

	"dispatch-service/internal/models"
	"dispatch-service/internal/route"
	"dispatch-service/internal/util"

	"go.uber.org/zap"
)

// routeStore is the slice of the record store the route service needs.
type routeStore interface {
	GetAgent(ctx context.Context, agentID string) (*models.DeliveryAgent, error)
	GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error)
	GetWarehouse(ctx context.Context, warehouseID string) (*models.Warehouse, error)
	GetStore(ctx context.Context, storeID string) (*models.Store, error)
	GetOrdersByWarehouse(ctx context.Context, warehouseID string) ([]models.Order, error)
	SaveAgentRoute(ctx context.Context, agentID string, stops models.RouteStops) error
	UpdateAgentRouteProgress(ctx context.Context, agentID string, stops models.RouteStops, status string) error
}

// routePublisher emits a route-assigned notification. Optional.
type routePublisher interface {
	PublishRouteAssigned(ctx context.Context, event *models.RouteAssignedEvent) error
}

// AgentRouteService maintains each agent's ordered stop sequence: it
// builds routes over the warehouse's in-flight orders, records stop
// completions and recomputes agent availability.
type AgentRouteService struct {
	store     routeStore
	publisher routePublisher
	logger    *zap.Logger
}

// NewAgentRouteService creates a new agent route service
func NewAgentRouteService(store routeStore, publisher routePublisher) *AgentRouteService {
	return &AgentRouteService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// AssignStoresToRoute rebuilds the agent's route over every in-flight
// order in the warehouse. Orders are grouped by store, sequenced
// nearest-first from the agent's location (the bound vehicle's position,
// falling back to the warehouse) and persisted as the agent's assigned
// route, replacing whatever was there.
func (s *AgentRouteService) AssignStoresToRoute(ctx context.Context, agentID, warehouseID string) (models.RouteStops, error) {
	ctx, span := util.StartSpan(ctx, "AgentRouteService.AssignStoresToRoute")
	defer span.End()

	start := time.Now()

	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	startLocation, err := s.agentLocation(ctx, agent, warehouseID)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.GetOrdersByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	stops, err := s.groupOrdersByStore(ctx, orders)
	if err != nil {
		return nil, err
	}

	planned := models.RouteStops(route.BuildRoute(startLocation, stops, time.Now()))
	if err := s.store.SaveAgentRoute(ctx, agentID, planned); err != nil {
		return nil, err
	}

	util.RoutesBuiltTotal.Inc()
	util.RouteStopsPlanned.Observe(float64(len(planned)))
	util.RouteBuildLatency.Observe(time.Since(start).Seconds())
	s.logger.Info("Route assigned",
		zap.String("agent_id", agentID),
		zap.String("warehouse_id", warehouseID),
		zap.Int("stops", len(planned)))

	if s.publisher != nil {
		event := &models.RouteAssignedEvent{
			BaseEvent: newBaseEvent(models.EventTypeRouteAssigned),
			AgentID:   agentID,
			StopCount: len(planned),
		}
		if err := s.publisher.PublishRouteAssigned(ctx, event); err != nil {
			s.logger.Error("Failed to publish event", zap.String("event", "PublishRouteAssigned"), zap.Error(err))
		}
	}

	return planned, nil
}

// agentLocation resolves where the agent currently is: the bound
// vehicle's last reported position when present, otherwise the
// warehouse itself.
func (s *AgentRouteService) agentLocation(ctx context.Context, agent *models.DeliveryAgent, warehouseID string) (models.GeoPoint, error) {
	if agent.VehicleID != nil {
		vehicle, err := s.store.GetVehicle(ctx, *agent.VehicleID)
		if err != nil {
			return models.GeoPoint{}, err
		}
		if vehicle.CurrentLocation.Valid {
			return vehicle.CurrentLocation.Point, nil
		}
	}

	warehouse, err := s.store.GetWarehouse(ctx, warehouseID)
	if err != nil {
		return models.GeoPoint{}, err
	}
	return warehouse.Location, nil
}

// groupOrdersByStore collapses the warehouse's in-flight orders into one
// candidate stop per store, each carrying the order ids bound for it.
func (s *AgentRouteService) groupOrdersByStore(ctx context.Context, orders []models.Order) ([]route.Stop, error) {
	byStore := make(map[string]*route.Stop)
	sequence := make([]string, 0)

	for _, order := range orders {
		if !inFlight(order.Status) {
			continue
		}

		stop, ok := byStore[order.StoreID]
		if !ok {
			st, err := s.store.GetStore(ctx, order.StoreID)
			if err != nil {
				return nil, err
			}
			stop = &route.Stop{
				StoreID:   st.StoreID,
				StoreName: st.Name,
				Address:   st.Address,
				Location:  st.Location,
			}
			byStore[order.StoreID] = stop
			sequence = append(sequence, order.StoreID)
		}
		stop.OrderIDs = append(stop.OrderIDs, order.OrderID)
	}

	stops := make([]route.Stop, 0, len(sequence))
	for _, storeID := range sequence {
		stops = append(stops, *byStore[storeID])
	}
	return stops, nil
}

// inFlight reports whether an order still needs a route stop.
func inFlight(status string) bool {
	switch status {
	case models.OrderStatusConfirmed, models.OrderStatusReadyForDelivery, models.OrderStatusAssigned:
		return true
	}
	return false
}

// UpdateDeliveryProgress marks every route stop carrying the completed
// order as done. When the whole route is complete the agent becomes
// available again; until then it stays busy.
func (s *AgentRouteService) UpdateDeliveryProgress(ctx context.Context, agentID, completedOrderID string) error {
	ctx, span := util.StartSpan(ctx, "AgentRouteService.UpdateDeliveryProgress")
	defer span.End()

	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}

	now := time.Now()
	allDone := true
	for i := range agent.AssignedRoute {
		stop := &agent.AssignedRoute[i]
		if !stop.Completed && containsOrder(stop.OrderIDs, completedOrderID) {
			stop.Completed = true
			stop.CompletedAt = &now
		}
		if !stop.Completed {
			allDone = false
		}
	}

	status := models.AgentStatusBusy
	if allDone {
		status = models.AgentStatusAvailable
	}

	if err := s.store.UpdateAgentRouteProgress(ctx, agentID, agent.AssignedRoute, status); err != nil {
		return err
	}

	s.logger.Info("Delivery progress recorded",
		zap.String("agent_id", agentID),
		zap.String("order_id", completedOrderID),
		zap.String("agent_status", status))
	return nil
}

// GetAgentRoute returns the agent's persisted route. An agent with no
// assigned route yields an empty sequence, never nil.
func (s *AgentRouteService) GetAgentRoute(ctx context.Context, agentID string) (models.RouteStops, error) {
	ctx, span := util.StartSpan(ctx, "AgentRouteService.GetAgentRoute")
	defer span.End()

	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.AssignedRoute == nil {
		return models.RouteStops{}, nil
	}
	return agent.AssignedRoute, nil
}

func containsOrder(orderIDs []string, orderID string) bool {
	for _, id := range orderIDs {
		if id == orderID {
			return true
		}
	}
	return false
}
