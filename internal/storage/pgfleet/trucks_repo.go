package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const truckColumns = `id, dealer_id, license_plate, truck_type, capacity_weight, capacity_volume, cost_per_km, fuel_efficiency, is_available, created_at`

func (s *Storage) CreateTruck(ctx context.Context, in models.TruckCreateInput) (*models.Truck, error) {
	now := time.Now().UTC()
	fuelEfficiency := in.FuelEfficiency
	if fuelEfficiency <= 0 {
		fuelEfficiency = 4
	}
	row := s.db.QueryRow(ctx, `
INSERT INTO trucks (dealer_id, license_plate, truck_type, capacity_weight, capacity_volume, cost_per_km, fuel_efficiency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+truckColumns,
		in.DealerID, in.LicensePlate, in.TruckType, in.CapacityWeight, in.CapacityVolume, in.CostPerKm, fuelEfficiency, now)

	t, err := scanTruck(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert truck")
	}
	return t, nil
}

func (s *Storage) GetTruckByID(ctx context.Context, id uint64) (*models.Truck, error) {
	row := s.db.QueryRow(ctx, `SELECT `+truckColumns+` FROM trucks WHERE id = $1`, id)
	t, err := scanTruck(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.NotFound("truck")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select truck")
	}
	return t, nil
}

// ListAvailableTrucks is the candidate pool for the matching engine.
func (s *Storage) ListAvailableTrucks(ctx context.Context) ([]*models.Truck, error) {
	rows, err := s.db.Query(ctx, `SELECT `+truckColumns+` FROM trucks WHERE is_available ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select available trucks")
	}
	defer rows.Close()

	var out []*models.Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan truck")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanTruck(row pgx.Row) (*models.Truck, error) {
	var t models.Truck
	if err := row.Scan(
		&t.ID, &t.DealerID, &t.LicensePlate, &t.TruckType,
		&t.CapacityWeight, &t.CapacityVolume, &t.CostPerKm, &t.FuelEfficiency,
		&t.IsAvailable, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
