package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FleetBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const expenseColumns = `id, vehicle_id, category, amount, description, date, created_at`

func (s *Storage) CreateExpense(ctx context.Context, in models.ExpenseCreateInput) (*models.Expense, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO expenses (vehicle_id, category, amount, description, date, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+expenseColumns,
		in.VehicleID, in.Category, in.Amount, in.Description, in.Date.UTC(), now)

	e, err := scanExpense(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert expense")
	}
	return e, nil
}

func (s *Storage) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	rows, err := s.db.Query(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select expenses")
	}
	defer rows.Close()

	var out []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan expense")
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var e models.Expense
	if err := row.Scan(&e.ID, &e.VehicleID, &e.Category, &e.Amount, &e.Description, &e.Date, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
