package pgfleet

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS vehicles (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  license_plate TEXT NOT NULL,
  max_load_capacity DOUBLE PRECISION NOT NULL,
  odometer DOUBLE PRECISION NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (license_plate)
)`,
		`
CREATE TABLE IF NOT EXISTS drivers (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  license_expiry TIMESTAMPTZ NOT NULL,
  safety_score DOUBLE PRECISION NOT NULL DEFAULT 100,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS trips (
  id BIGSERIAL PRIMARY KEY,
  vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
  driver_id BIGINT NOT NULL REFERENCES drivers(id),
  cargo_weight DOUBLE PRECISION NOT NULL,
  status TEXT NOT NULL,
  completed_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_trips_vehicle_id ON trips(vehicle_id)`,
		`
CREATE TABLE IF NOT EXISTS trucks (
  id BIGSERIAL PRIMARY KEY,
  dealer_id TEXT NOT NULL,
  license_plate TEXT NOT NULL,
  truck_type TEXT NOT NULL DEFAULT '',
  capacity_weight DOUBLE PRECISION NOT NULL,
  capacity_volume DOUBLE PRECISION NOT NULL,
  cost_per_km DOUBLE PRECISION NOT NULL,
  fuel_efficiency DOUBLE PRECISION NOT NULL DEFAULT 4,
  is_available BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_trucks_dealer_id ON trucks(dealer_id)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  warehouse_id TEXT NOT NULL,
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  total_weight DOUBLE PRECISION NOT NULL,
  total_volume DOUBLE PRECISION NOT NULL,
  status TEXT NOT NULL,
  assigned_truck_id BIGINT NULL REFERENCES trucks(id),
  estimated_cost DOUBLE PRECISION NULL,
  savings DOUBLE PRECISION NULL,
  co2_saved DOUBLE PRECISION NULL,
  delivered_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_warehouse_id ON shipments(warehouse_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments(status)`,
		`
CREATE TABLE IF NOT EXISTS maintenance_logs (
  id BIGSERIAL PRIMARY KEY,
  vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
  description TEXT NOT NULL,
  cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  date TIMESTAMPTZ NOT NULL,
  resolved_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_logs_open ON maintenance_logs(vehicle_id) WHERE resolved_at IS NULL`,
		`
CREATE TABLE IF NOT EXISTS fuel_logs (
  id BIGSERIAL PRIMARY KEY,
  vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
  trip_id BIGINT NULL REFERENCES trips(id),
  liters DOUBLE PRECISION NOT NULL,
  cost DOUBLE PRECISION NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_fuel_logs_vehicle_id ON fuel_logs(vehicle_id)`,
		`
CREATE TABLE IF NOT EXISTS expenses (
  id BIGSERIAL PRIMARY KEY,
  vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
  category TEXT NOT NULL,
  amount DOUBLE PRECISION NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  date TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_vehicle_id ON expenses(vehicle_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
