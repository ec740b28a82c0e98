package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dispatch-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the keyed record store backing the dispatch pipeline. Multi-row
// mutations run inside a single transaction so each call is all-or-nothing;
// no isolation is promised across concurrent calls touching the same rows.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// InitSchema creates the tables if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stores (
			store_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address JSONB NOT NULL DEFAULT '{}'::jsonb,
			location JSONB NOT NULL DEFAULT '{}'::jsonb,
			ordered_items JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS warehouses (
			warehouse_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address JSONB NOT NULL DEFAULT '{}'::jsonb,
			location JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			warehouse_id TEXT NOT NULL,
			name TEXT NOT NULL,
			price BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS warehouse_inventory (
			warehouse_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0,
			reserved INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (warehouse_id, product_id),
			CHECK (reserved >= 0 AND reserved <= stock)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			warehouse_id TEXT NOT NULL,
			items JSONB NOT NULL DEFAULT '[]'::jsonb,
			total_amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			estimated_delivery_time TIMESTAMPTZ,
			delivery_agent_id TEXT,
			vehicle_id TEXT,
			cancellation_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			delivered_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_warehouse ON orders (warehouse_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_store ON orders (store_id)`,
		`CREATE TABLE IF NOT EXISTS vehicles (
			vehicle_id TEXT PRIMARY KEY,
			warehouse_id TEXT NOT NULL,
			vehicle_type TEXT NOT NULL DEFAULT 'van',
			capacity INTEGER NOT NULL,
			current_load INTEGER NOT NULL DEFAULT 0,
			route_street TEXT,
			route_city TEXT,
			status TEXT NOT NULL DEFAULT 'available',
			agent_id TEXT,
			current_location JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (current_load >= 0 AND current_load <= capacity)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_warehouse ON vehicles (warehouse_id)`,
		`CREATE TABLE IF NOT EXISTS delivery_agents (
			agent_id TEXT PRIMARY KEY,
			warehouse_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			vehicle_id TEXT,
			current_orders JSONB NOT NULL DEFAULT '[]'::jsonb,
			status TEXT NOT NULL DEFAULT 'available',
			assigned_route JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_warehouse ON delivery_agents (warehouse_id)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			notification_id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// notFound maps sql.ErrNoRows onto the shared taxonomy.
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return err
}
