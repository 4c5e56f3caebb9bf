package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `id, warehouse_id, origin, destination, total_weight, total_volume, status, assigned_truck_id, estimated_cost, savings, co2_saved, delivered_at, created_at`

// DeliveryMetrics is computed by the coordinator at the DELIVERED
// transition and persisted together with the status flip.
type DeliveryMetrics struct {
	EstimatedCost float64
	Savings       float64
	CO2Saved      float64
	DeliveredAt   time.Time
}

func (s *Storage) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO shipments (warehouse_id, origin, destination, total_weight, total_volume, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+shipmentColumns,
		in.WarehouseID, in.Origin, in.Destination, in.TotalWeight, in.TotalVolume, models.ShipmentStatusPending, now)

	sh, err := scanShipment(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert shipment")
	}
	return sh, nil
}

func (s *Storage) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	sh, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.NotFound("shipment")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) ListWarehouseShipments(ctx context.Context, warehouseID string) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+` FROM shipments WHERE warehouse_id = $1 ORDER BY created_at DESC`, warehouseID)
	if err != nil {
		return nil, errors.Wrap(err, "select warehouse shipments")
	}
	return collectShipments(rows)
}

// ListDealerJobs returns the ASSIGNED shipments currently sitting on the
// dealer's trucks.
func (s *Storage) ListDealerJobs(ctx context.Context, dealerID string) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+prefixedShipmentColumns("sh")+`
FROM shipments sh
JOIN trucks t ON t.id = sh.assigned_truck_id
WHERE t.dealer_id = $1 AND sh.status = $2
ORDER BY sh.created_at DESC`, dealerID, models.ShipmentStatusAssigned)
	if err != nil {
		return nil, errors.Wrap(err, "select dealer jobs")
	}
	return collectShipments(rows)
}

// BookShipment assigns the truck and locks it, both inside one transaction.
// The status flips are conditional updates: whoever loses the race gets a
// state conflict instead of silently double-booking.
func (s *Storage) BookShipment(ctx context.Context, shipmentID, truckID uint64) (*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE shipments SET assigned_truck_id = $2, status = $3
WHERE id = $1 AND status = $4`,
		shipmentID, truckID, models.ShipmentStatusAssigned, models.ShipmentStatusPending)
	if err != nil {
		return nil, errors.Wrap(err, "assign shipment")
	}
	if tag.RowsAffected() == 0 {
		return nil, faults.Conflict(faults.RuleTerminalState, "shipment %d is not PENDING", shipmentID)
	}

	tag, err = tx.Exec(ctx, `UPDATE trucks SET is_available = FALSE WHERE id = $1 AND is_available`, truckID)
	if err != nil {
		return nil, errors.Wrap(err, "lock truck")
	}
	if tag.RowsAffected() == 0 {
		return nil, faults.Validation(faults.RuleTruckUnavailable, "truck %d is already assigned to another shipment", truckID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetShipmentByID(ctx, shipmentID)
}

// DeliverShipment persists the final metrics, closes the shipment and
// frees its truck.
func (s *Storage) DeliverShipment(ctx context.Context, shipmentID, truckID uint64, m DeliveryMetrics) (*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE shipments
SET status = $2, estimated_cost = $3, savings = $4, co2_saved = $5, delivered_at = $6
WHERE id = $1 AND status = $7`,
		shipmentID, models.ShipmentStatusDelivered,
		m.EstimatedCost, m.Savings, m.CO2Saved, m.DeliveredAt.UTC(),
		models.ShipmentStatusAssigned)
	if err != nil {
		return nil, errors.Wrap(err, "deliver shipment")
	}
	if tag.RowsAffected() == 0 {
		return nil, faults.Conflict(faults.RuleTerminalState, "shipment %d is not ASSIGNED", shipmentID)
	}

	if _, err := tx.Exec(ctx, `UPDATE trucks SET is_available = TRUE WHERE id = $1`, truckID); err != nil {
		return nil, errors.Wrap(err, "free truck")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetShipmentByID(ctx, shipmentID)
}

func collectShipments(rows pgx.Rows) ([]*models.Shipment, error) {
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	if err := row.Scan(
		&sh.ID, &sh.WarehouseID, &sh.Origin, &sh.Destination,
		&sh.TotalWeight, &sh.TotalVolume, &sh.Status,
		&sh.AssignedTruckID, &sh.EstimatedCost, &sh.Savings, &sh.CO2Saved,
		&sh.DeliveredAt, &sh.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &sh, nil
}

func prefixedShipmentColumns(alias string) string {
	return alias + ".id, " + alias + ".warehouse_id, " + alias + ".origin, " + alias + ".destination, " +
		alias + ".total_weight, " + alias + ".total_volume, " + alias + ".status, " +
		alias + ".assigned_truck_id, " + alias + ".estimated_cost, " + alias + ".savings, " +
		alias + ".co2_saved, " + alias + ".delivered_at, " + alias + ".created_at"
}
