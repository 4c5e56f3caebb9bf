package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const tripColumns = `id, vehicle_id, driver_id, cargo_weight, status, completed_at, created_at`

// TripCompletion carries everything the COMPLETED transition writes.
type TripCompletion struct {
	TripID        uint64
	VehicleID     uint64
	FinalOdometer float64
	CompletedAt   time.Time

	// A fuel log row is appended iff liters or cost is positive.
	FuelLiters float64
	FuelCost   float64
}

func (s *Storage) GetTripByID(ctx context.Context, id uint64) (*models.Trip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.NotFound("trip")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select trip")
	}
	return t, nil
}

func (s *Storage) ListTrips(ctx context.Context) ([]*models.Trip, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select trips")
	}
	defer rows.Close()

	var out []*models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan trip")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// DispatchTrip creates the trip and flips the vehicle to ON_TRIP in one
// transaction. The vehicle update is conditional on AVAILABLE, which makes
// the status transition itself the lock: two racing dispatches cannot both
// take the same vehicle.
func (s *Storage) DispatchTrip(ctx context.Context, vehicleID, driverID uint64, cargoWeight float64) (*models.Trip, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE vehicles SET status = $2, updated_at = $3
WHERE id = $1 AND status = $4`,
		vehicleID, models.VehicleStatusOnTrip, now, models.VehicleStatusAvailable)
	if err != nil {
		return nil, errors.Wrap(err, "lock vehicle")
	}
	if tag.RowsAffected() == 0 {
		return nil, faults.Conflict(faults.RuleTerminalState, "vehicle %d is not AVAILABLE", vehicleID)
	}

	row := tx.QueryRow(ctx, `
INSERT INTO trips (vehicle_id, driver_id, cargo_weight, status, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+tripColumns, vehicleID, driverID, cargoWeight, models.TripStatusDispatched, now)
	t, err := scanTrip(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert trip")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return t, nil
}

// CompleteTrip closes the trip, frees the vehicle, advances the odometer
// and appends the optional fuel log in a single transaction.
func (s *Storage) CompleteTrip(ctx context.Context, upd TripCompletion) (*models.Trip, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
UPDATE trips SET status = $2, completed_at = $3
WHERE id = $1 AND status = $4
RETURNING `+tripColumns,
		upd.TripID, models.TripStatusCompleted, upd.CompletedAt.UTC(), models.TripStatusDispatched)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.Conflict(faults.RuleTerminalState, "trip %d is already COMPLETED", upd.TripID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "complete trip")
	}

	// The odometer guard repeats here so a stale pre-read cannot shrink
	// the recorded value.
	tag, err := tx.Exec(ctx, `
UPDATE vehicles SET status = $2, odometer = $3, updated_at = $4
WHERE id = $1 AND odometer <= $3`,
		upd.VehicleID, models.VehicleStatusAvailable, upd.FinalOdometer, upd.CompletedAt.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "free vehicle")
	}
	if tag.RowsAffected() == 0 {
		return nil, faults.Validation(faults.RuleOdometer,
			"final odometer (%gkm) is below the recorded odometer", upd.FinalOdometer)
	}

	if upd.FuelLiters > 0 || upd.FuelCost > 0 {
		_, err := tx.Exec(ctx, `
INSERT INTO fuel_logs (vehicle_id, trip_id, liters, cost, created_at)
VALUES ($1,$2,$3,$4,$5)`,
			upd.VehicleID, upd.TripID, upd.FuelLiters, upd.FuelCost, upd.CompletedAt.UTC())
		if err != nil {
			return nil, errors.Wrap(err, "insert fuel log")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return t, nil
}

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	if err := row.Scan(&t.ID, &t.VehicleID, &t.DriverID, &t.CargoWeight, &t.Status, &t.CompletedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
