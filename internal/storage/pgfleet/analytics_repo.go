package pgfleet

import (
	"context"

	"github.com/BearBump/FleetBox/internal/models"
	"github.com/pkg/errors"
)

// VehicleAnalytics aggregates fuel, maintenance and expense spend per
// vehicle. Efficiency metrics guard against division by zero the same way
// the reporting surface expects: no data means 0, not NaN.
func (s *Storage) VehicleAnalytics(ctx context.Context) ([]*models.VehicleAnalytics, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  v.id, v.name, v.license_plate, v.odometer,
  COALESCE(f.liters, 0), COALESCE(f.cost, 0), COALESCE(m.cost, 0), COALESCE(e.amount, 0)
FROM vehicles v
LEFT JOIN (
  SELECT vehicle_id, SUM(liters) AS liters, SUM(cost) AS cost
  FROM fuel_logs GROUP BY vehicle_id
) f ON f.vehicle_id = v.id
LEFT JOIN (
  SELECT vehicle_id, SUM(cost) AS cost
  FROM maintenance_logs GROUP BY vehicle_id
) m ON m.vehicle_id = v.id
LEFT JOIN (
  SELECT vehicle_id, SUM(amount) AS amount
  FROM expenses GROUP BY vehicle_id
) e ON e.vehicle_id = v.id
ORDER BY v.name ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle analytics")
	}
	defer rows.Close()

	var out []*models.VehicleAnalytics
	for rows.Next() {
		var a models.VehicleAnalytics
		if err := rows.Scan(
			&a.VehicleID, &a.Name, &a.LicensePlate, &a.Odometer,
			&a.TotalFuelLiters, &a.TotalFuelCost, &a.TotalMaintenanceCost, &a.TotalExpenseCost,
		); err != nil {
			return nil, errors.Wrap(err, "scan vehicle analytics")
		}
		a.TotalOperationalCost = a.TotalFuelCost + a.TotalMaintenanceCost + a.TotalExpenseCost
		if a.TotalFuelLiters > 0 {
			a.FuelEfficiency = a.Odometer / a.TotalFuelLiters
		}
		if a.Odometer > 0 {
			a.CostPerKm = a.TotalOperationalCost / a.Odometer
		}
		out = append(out, &a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
