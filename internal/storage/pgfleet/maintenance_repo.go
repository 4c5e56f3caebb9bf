package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const maintenanceColumns = `id, vehicle_id, description, cost, date, resolved_at`

// OpenMaintenance creates the log and sends the vehicle to the shop in one
// transaction. Only an AVAILABLE vehicle can be taken in.
func (s *Storage) OpenMaintenance(ctx context.Context, vehicleID uint64, description string, cost float64) (*models.MaintenanceLog, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE vehicles SET status = $2, updated_at = $3
WHERE id = $1 AND status = $4`,
		vehicleID, models.VehicleStatusInShop, now, models.VehicleStatusAvailable)
	if err != nil {
		return nil, errors.Wrap(err, "lock vehicle")
	}
	if tag.RowsAffected() == 0 {
		return nil, faults.Conflict(faults.RuleTerminalState, "vehicle %d is not AVAILABLE", vehicleID)
	}

	row := tx.QueryRow(ctx, `
INSERT INTO maintenance_logs (vehicle_id, description, cost, date)
VALUES ($1,$2,$3,$4)
RETURNING `+maintenanceColumns, vehicleID, description, cost, now)
	m, err := scanMaintenanceLog(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert maintenance log")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return m, nil
}

func (s *Storage) ListMaintenance(ctx context.Context) ([]*models.MaintenanceLog, error) {
	rows, err := s.db.Query(ctx, `SELECT `+maintenanceColumns+` FROM maintenance_logs ORDER BY date DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select maintenance logs")
	}
	defer rows.Close()

	var out []*models.MaintenanceLog
	for rows.Next() {
		m, err := scanMaintenanceLog(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan maintenance log")
		}
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ReleaseMaintenance resolves the vehicle's open logs and puts it back in
// service. Resolving the logs explicitly answers "which ticket did this
// release close".
func (s *Storage) ReleaseMaintenance(ctx context.Context, vehicleID uint64) (*models.Vehicle, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
UPDATE vehicles SET status = $2, updated_at = $3
WHERE id = $1 AND status = $4
RETURNING `+vehicleColumns,
		vehicleID, models.VehicleStatusAvailable, now, models.VehicleStatusInShop)
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.Conflict(faults.RuleTerminalState, "vehicle %d is not IN_SHOP", vehicleID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "release vehicle")
	}

	if _, err := tx.Exec(ctx, `
UPDATE maintenance_logs SET resolved_at = $2
WHERE vehicle_id = $1 AND resolved_at IS NULL`, vehicleID, now); err != nil {
		return nil, errors.Wrap(err, "resolve maintenance logs")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return v, nil
}

func scanMaintenanceLog(row pgx.Row) (*models.MaintenanceLog, error) {
	var m models.MaintenanceLog
	if err := row.Scan(&m.ID, &m.VehicleID, &m.Description, &m.Cost, &m.Date, &m.ResolvedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
