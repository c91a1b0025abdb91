package holiday

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Calendar answers whether a calendar date is a clinic holiday.
type Calendar interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

type PgCalendar struct {
	pool *pgxpool.Pool
}

func NewPgCalendar(pool *pgxpool.Pool) *PgCalendar {
	return &PgCalendar{pool: pool}
}

func (c *PgCalendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM holidays WHERE date = $1)
	`, date).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// None is a calendar with no holidays, for deployments that do not maintain
// a holiday table.
type None struct{}

func (None) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	return false, nil
}
