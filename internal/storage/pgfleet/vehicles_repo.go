package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const vehicleColumns = `id, name, license_plate, max_load_capacity, odometer, status, created_at, updated_at`

func (s *Storage) CreateVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO vehicles (name, license_plate, max_load_capacity, odometer, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
RETURNING `+vehicleColumns, in.Name, in.LicensePlate, in.MaxLoadCapacity, in.Odometer, models.VehicleStatusAvailable, now)

	v, err := scanVehicle(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert vehicle")
	}
	return v, nil
}

func (s *Storage) GetVehicleByID(ctx context.Context, id uint64) (*models.Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.NotFound("vehicle")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle")
	}
	return v, nil
}

func (s *Storage) ListVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select vehicles")
	}
	defer rows.Close()

	var out []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan vehicle")
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := row.Scan(
		&v.ID, &v.Name, &v.LicensePlate, &v.MaxLoadCapacity, &v.Odometer,
		&v.Status, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}
