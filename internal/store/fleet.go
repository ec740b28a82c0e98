package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch-service/internal/models"
)

// CreateVehicle persists a new vehicle with zero load.
func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.Status == "" {
		v.Status = models.VehicleStatusAvailable
	}
	query := `
		INSERT INTO vehicles (vehicle_id, warehouse_id, vehicle_type, capacity,
			current_load, status, current_location)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		v.VehicleID, v.WarehouseID, v.VehicleType, v.Capacity,
		v.Status, v.CurrentLocation).Scan(&v.CreatedAt, &v.UpdatedAt)
}

// GetVehicle retrieves a vehicle by ID
func (s *Store) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.GetContext(ctx, &v, "SELECT * FROM vehicles WHERE vehicle_id = $1", vehicleID)
	if err != nil {
		return nil, notFound(err, "vehicle", vehicleID)
	}
	return &v, nil
}

// GetVehiclesByWarehouse retrieves a warehouse's fleet in stable id order.
func (s *Store) GetVehiclesByWarehouse(ctx context.Context, warehouseID string) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := s.db.SelectContext(ctx, &vehicles,
		"SELECT * FROM vehicles WHERE warehouse_id = $1 ORDER BY vehicle_id", warehouseID)
	return vehicles, err
}

// ApplyVanAssignment commits a van selection in one transaction: the van's
// load grows by orderSize and it turns in_use (anchoring to the store's
// street/city when it was empty), and the order gains the vehicle id and
// moves to ready_for_delivery. The load update is conditional on capacity
// so two racing assignments cannot overfill the van.
func (s *Store) ApplyVanAssignment(ctx context.Context, vehicleID, orderID string, orderSize int, anchor models.Address) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE vehicles
		SET current_load = current_load + $1,
			status = $2,
			route_street = CASE WHEN current_load = 0 THEN $3 ELSE route_street END,
			route_city = CASE WHEN current_load = 0 THEN $4 ELSE route_city END,
			updated_at = now()
		WHERE vehicle_id = $5 AND current_load + $1 <= capacity`,
		orderSize, models.VehicleStatusInUse, anchor.Street, anchor.City, vehicleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vehicle %s over capacity: %w", vehicleID, models.ErrUnprocessable)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET vehicle_id = $1, status = $2, updated_at = now()
		WHERE order_id = $3`,
		vehicleID, models.OrderStatusReadyForDelivery, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}

	return tx.Commit()
}

// AdjustVehicleLoad changes a van's load by delta. When the load returns
// to zero and clearAnchor is set, the route anchor is dropped and the van
// becomes available again.
func (s *Store) AdjustVehicleLoad(ctx context.Context, vehicleID string, delta int, clearAnchor bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE vehicles
		SET current_load = current_load + $1, updated_at = now()
		WHERE vehicle_id = $2 AND current_load + $1 BETWEEN 0 AND capacity`,
		delta, vehicleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vehicle %s load out of range: %w", vehicleID, models.ErrUnprocessable)
	}

	if clearAnchor {
		_, err = tx.ExecContext(ctx, `
			UPDATE vehicles
			SET route_street = NULL, route_city = NULL, status = $1, updated_at = now()
			WHERE vehicle_id = $2 AND current_load = 0`,
			models.VehicleStatusAvailable, vehicleID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// BindVehicleToAgent enforces the 1:1 vehicle/agent pairing in one
// transaction. A vehicle held by a different agent aborts with a conflict
// before any write; a previous vehicle held by this agent is released.
func (s *Store) BindVehicleToAgent(ctx context.Context, vehicleID, agentID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var vehicle models.Vehicle
	if err := tx.GetContext(ctx, &vehicle,
		"SELECT * FROM vehicles WHERE vehicle_id = $1 FOR UPDATE", vehicleID); err != nil {
		return notFound(err, "vehicle", vehicleID)
	}

	var agent models.DeliveryAgent
	if err := tx.GetContext(ctx, &agent,
		"SELECT * FROM delivery_agents WHERE agent_id = $1 FOR UPDATE", agentID); err != nil {
		return notFound(err, "agent", agentID)
	}

	// Another agent already holds this vehicle.
	var holder string
	err = tx.GetContext(ctx, &holder, `
		SELECT agent_id FROM delivery_agents
		WHERE vehicle_id = $1 AND agent_id <> $2 LIMIT 1`,
		vehicleID, agentID)
	switch {
	case err == nil:
		return fmt.Errorf("vehicle %s already assigned to agent %s: %w", vehicleID, holder, models.ErrConflict)
	case errors.Is(err, sql.ErrNoRows):
		// free to bind
	default:
		return err
	}

	// Release the vehicle's previous holder if it points elsewhere.
	if vehicle.AgentID != nil && *vehicle.AgentID != agentID {
		_, err = tx.ExecContext(ctx, `
			UPDATE delivery_agents SET vehicle_id = NULL, updated_at = now() WHERE agent_id = $1`,
			*vehicle.AgentID)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE vehicles SET agent_id = $1, status = $2, updated_at = now() WHERE vehicle_id = $3`,
		agentID, models.VehicleStatusInUse, vehicleID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE delivery_agents SET vehicle_id = $1, updated_at = now() WHERE agent_id = $2`,
		vehicleID, agentID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CreateAgent persists a new delivery agent.
func (s *Store) CreateAgent(ctx context.Context, a *models.DeliveryAgent) error {
	if a.Status == "" {
		a.Status = models.AgentStatusAvailable
	}
	query := `
		INSERT INTO delivery_agents (agent_id, warehouse_id, name, vehicle_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		a.AgentID, a.WarehouseID, a.Name, a.VehicleID, a.Status).Scan(&a.CreatedAt, &a.UpdatedAt)
}

// GetAgent retrieves a delivery agent by ID
func (s *Store) GetAgent(ctx context.Context, agentID string) (*models.DeliveryAgent, error) {
	var a models.DeliveryAgent
	err := s.db.GetContext(ctx, &a, "SELECT * FROM delivery_agents WHERE agent_id = $1", agentID)
	if err != nil {
		return nil, notFound(err, "agent", agentID)
	}
	return &a, nil
}

// GetAgentsByWarehouse retrieves a warehouse's agents in stable id order.
func (s *Store) GetAgentsByWarehouse(ctx context.Context, warehouseID string) ([]models.DeliveryAgent, error) {
	var agents []models.DeliveryAgent
	err := s.db.SelectContext(ctx, &agents,
		"SELECT * FROM delivery_agents WHERE warehouse_id = $1 ORDER BY agent_id", warehouseID)
	return agents, err
}

// SaveAgentRoute overwrites an agent's assigned route.
func (s *Store) SaveAgentRoute(ctx context.Context, agentID string, stops models.RouteStops) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_agents SET assigned_route = $1, updated_at = now() WHERE agent_id = $2`,
		stops, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	return nil
}

// UpdateAgentRouteProgress overwrites an agent's route and status together
// after a delivery completion pass.
func (s *Store) UpdateAgentRouteProgress(ctx context.Context, agentID string, stops models.RouteStops, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_agents
		SET assigned_route = $1, status = $2, updated_at = now()
		WHERE agent_id = $3`,
		stops, status, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", agentID, models.ErrNotFound)
	}
	return nil
}
