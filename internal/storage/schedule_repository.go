package storage

import (
	"context"

	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/libs/db"
)

// ScheduleRepository manages the weekly template rows, one per day_of_week.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) ListTemplate(ctx context.Context) ([]model.ScheduleDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, is_open, start_minute, end_minute
		FROM schedule_template
		ORDER BY day_of_week ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleDay
	for rows.Next() {
		var d model.ScheduleDay
		if err := rows.Scan(&d.DayOfWeek, &d.IsOpen, &d.StartMinute, &d.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) UpsertDay(ctx context.Context, d model.ScheduleDay) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_template (day_of_week, is_open, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day_of_week) DO UPDATE
		SET is_open = EXCLUDED.is_open,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, d.DayOfWeek, d.IsOpen, d.StartMinute, d.EndMinute)
	return err
}
