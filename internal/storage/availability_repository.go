package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/libs/db"
)

var ErrSlotExists = errors.New("availability slot already exists")

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) ListSlotsByDate(ctx context.Context, date string) ([]model.AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, date::text, start_minute, end_minute
		FROM availability_slots
		WHERE date = $1::date
		ORDER BY start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *AvailabilityRepository) ListSlotsInRange(ctx context.Context, fromDate, toDate string) ([]model.AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, date::text, start_minute, end_minute
		FROM availability_slots
		WHERE date >= $1::date AND date <= $2::date
		ORDER BY date ASC, start_minute ASC
	`, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *AvailabilityRepository) CreateSlot(ctx context.Context, s model.AvailabilitySlot) (model.AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, date, start_minute, end_minute)
		VALUES ($1, $2::date, $3, $4)
		RETURNING id::text, date::text, start_minute, end_minute
	`, s.ID, s.Date, s.StartMinute, s.EndMinute)
	var out model.AvailabilitySlot
	if err := row.Scan(&out.ID, &out.Date, &out.StartMinute, &out.EndMinute); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.AvailabilitySlot{}, ErrSlotExists
		}
		return model.AvailabilitySlot{}, err
	}
	return out, nil
}

func (r *AvailabilityRepository) DeleteSlot(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DatesWithSlots returns the distinct dates in the range that already carry a
// slot. Month generation skips these so hand-edited days survive a re-run.
func (r *AvailabilityRepository) DatesWithSlots(ctx context.Context, fromDate, toDate string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT date::text
		FROM availability_slots
		WHERE date >= $1::date AND date <= $2::date
	`, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := map[string]bool{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = true
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return dates, nil
}

func (r *AvailabilityRepository) InsertSlots(ctx context.Context, slots []model.AvailabilitySlot) (int, error) {
	inserted := 0
	for _, s := range slots {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO availability_slots (id, date, start_minute, end_minute)
			VALUES ($1, $2::date, $3, $4)
			ON CONFLICT (date, start_minute) DO NOTHING
		`, s.ID, s.Date, s.StartMinute, s.EndMinute)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func collectSlots(rows pgx.Rows) ([]model.AvailabilitySlot, error) {
	var out []model.AvailabilitySlot
	for rows.Next() {
		var s model.AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.Date, &s.StartMinute, &s.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
