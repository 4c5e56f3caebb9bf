package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/faults"
	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const driverColumns = `id, name, license_expiry, safety_score, status, created_at`

func (s *Storage) CreateDriver(ctx context.Context, in models.DriverCreateInput) (*models.Driver, error) {
	now := time.Now().UTC()
	// Everyone starts with a perfect safety score.
	row := s.db.QueryRow(ctx, `
INSERT INTO drivers (name, license_expiry, safety_score, status, created_at)
VALUES ($1,$2,100,$3,$4)
RETURNING `+driverColumns, in.Name, in.LicenseExpiry.UTC(), models.DriverStatusOnDuty, now)

	d, err := scanDriver(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert driver")
	}
	return d, nil
}

func (s *Storage) GetDriverByID(ctx context.Context, id uint64) (*models.Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.NotFound("driver")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select driver")
	}
	return d, nil
}

func (s *Storage) ListDrivers(ctx context.Context) ([]*models.Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select drivers")
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan driver")
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var d models.Driver
	if err := row.Scan(&d.ID, &d.Name, &d.LicenseExpiry, &d.SafetyScore, &d.Status, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
