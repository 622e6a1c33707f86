// Package storage holds the Postgres repositories. Overlap protection is
// ultimately the bookings table's exclusion constraint on
// (date, int4range(start_minute, end_minute)) over active rows that are not
// flagged for review; the in-process checks are a fast path in front of it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/libs/db"
)

const bookingColumns = `
	id::text, name, COALESCE(phone, ''), COALESCE(instagram, ''),
	COALESCE(service, ''), COALESCE(art_level, ''), COALESCE(length, ''),
	COALESCE(soakoff, ''), COALESCE(pedicure, ''), COALESCE(pedicure_type, ''),
	COALESCE(booking_nails, ''), COALESCE(notes, ''),
	COALESCE(returning_client, ''), COALESCE(referral, ''),
	date::text, start_minute, duration_hours, end_minute,
	status, paid, needs_review, COALESCE(session_id, ''), reminder_sent,
	created_at, cancelled_at`

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *BookingRepository) GetBySession(ctx context.Context, sessionID string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE session_id = $1
	`, sessionID)
	return scanBooking(row)
}

// CreatePending inserts a pending row. The booking id is the client's
// idempotency key, so a replayed insert hits ON CONFLICT (id) and the caller
// gets the existing row back unchanged.
func (r *BookingRepository) CreatePending(ctx context.Context, b model.Booking) (model.Booking, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings
			(id, name, phone, instagram, service, art_level, length, soakoff,
			 pedicure, pedicure_type, booking_nails, notes, returning_client, referral,
			 date, start_minute, duration_hours, end_minute, status, paid, needs_review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15::date, $16, $17, $18, $19, $20, false)
		ON CONFLICT (id) DO NOTHING
	`, b.ID, b.Name, b.Phone, b.Instagram, b.Service, b.ArtLevel, b.Length, b.SoakOff,
		b.Pedicure, b.PedicureType, b.BookingNails, b.Notes, b.Returning, b.Referral,
		b.Date, b.StartMinute, b.DurationHours, b.EndMinute, b.Status, b.Paid)
	if err != nil {
		return model.Booking{}, mapPgError(err)
	}
	return r.GetByID(ctx, b.ID)
}

func (r *BookingRepository) SetSession(ctx context.Context, id, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET session_id = $2
		WHERE id = $1
	`, id, sessionID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (r *BookingRepository) Confirm(ctx context.Context, id string, needsReview bool) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'confirmed',
			paid = true,
			needs_review = $2
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id, needsReview)
	return scanBooking(row)
}

// UpsertConfirmed inserts a paid booking keyed on its checkout session, so a
// redelivered webhook converges on the one row the first delivery created.
// When the exclusion constraint rejects the interval the insert is retried
// with the review flag set; the deposit is captured either way. A row that
// already exists under the booking id but never had this session recorded
// (SetSession lost after the session was created) is claimed and confirmed
// in place instead of tripping the primary key.
func (r *BookingRepository) UpsertConfirmed(ctx context.Context, b model.Booking) (model.Booking, bool, error) {
	created, err := r.insertConfirmed(ctx, b)
	if err != nil && isExclusion(err) && !b.NeedsReview {
		b.NeedsReview = true
		created, err = r.insertConfirmed(ctx, b)
	}
	if err != nil && isUnique(err) {
		return r.claimPending(ctx, b)
	}
	if err != nil {
		return model.Booking{}, false, mapPgError(err)
	}
	stored, err := r.GetBySession(ctx, b.SessionID)
	if err != nil {
		return model.Booking{}, false, err
	}
	return stored, created, nil
}

// claimPending attaches the session to the row already stored under the
// booking id and confirms it. A replay finds the row confirmed and affects
// nothing, so the bool stays the "newly confirmed" signal the caller keys
// events on.
func (r *BookingRepository) claimPending(ctx context.Context, b model.Booking) (model.Booking, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET session_id = $2,
			status = 'confirmed',
			paid = true,
			needs_review = $3
		WHERE id = $1 AND status <> 'confirmed'
	`, b.ID, b.SessionID, b.NeedsReview)
	if err != nil {
		return model.Booking{}, false, mapPgError(err)
	}
	stored, err := r.GetByID(ctx, b.ID)
	if err != nil {
		return model.Booking{}, false, err
	}
	return stored, tag.RowsAffected() > 0, nil
}

func (r *BookingRepository) insertConfirmed(ctx context.Context, b model.Booking) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO bookings
			(id, name, phone, instagram, service, art_level, length, soakoff,
			 pedicure, pedicure_type, booking_nails, notes, returning_client, referral,
			 date, start_minute, duration_hours, end_minute,
			 status, paid, needs_review, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15::date, $16, $17, $18,
			'confirmed', true, $19, $20)
		ON CONFLICT (session_id) DO NOTHING
	`, b.ID, b.Name, b.Phone, b.Instagram, b.Service, b.ArtLevel, b.Length, b.SoakOff,
		b.Pedicure, b.PedicureType, b.BookingNails, b.Notes, b.Returning, b.Referral,
		b.Date, b.StartMinute, b.DurationHours, b.EndMinute,
		b.NeedsReview, b.SessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BookingRepository) Update(ctx context.Context, b model.Booking) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET name = $2,
			phone = $3,
			service = $4,
			art_level = $5,
			notes = $6,
			date = $7::date,
			start_minute = $8,
			duration_hours = $9,
			end_minute = $10,
			status = $11,
			paid = $12
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, b.ID, b.Name, b.Phone, b.Service, b.ArtLevel, b.Notes,
		b.Date, b.StartMinute, b.DurationHours, b.EndMinute, b.Status, b.Paid)
	return scanBooking(row)
}

func (r *BookingRepository) Cancel(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id)
	return scanBooking(row)
}

func (r *BookingRepository) ListActiveByDate(ctx context.Context, date string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = $1::date AND status <> 'cancelled'
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) ListUpcoming(ctx context.Context, fromDate string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date >= $1::date
		ORDER BY date ASC, start_minute ASC
		LIMIT $2
	`, fromDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// DueReminders returns confirmed bookings on the date that have not had a
// reminder sent yet.
func (r *BookingRepository) DueReminders(ctx context.Context, date string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date = $1::date
			AND status = 'confirmed'
			AND NOT reminder_sent
		ORDER BY start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// MarkReminderSent flips the reminder flag inside the caller's transaction so
// the flag and the reminder event commit together.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET reminder_sent = true
		WHERE id = $1 AND NOT reminder_sent
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// PurgeBefore deletes bookings dated strictly before the cutoff.
func (r *BookingRepository) PurgeBefore(ctx context.Context, date string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM bookings
		WHERE date < $1::date
	`, date)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Phone,
		&b.Instagram,
		&b.Service,
		&b.ArtLevel,
		&b.Length,
		&b.SoakOff,
		&b.Pedicure,
		&b.PedicureType,
		&b.BookingNails,
		&b.Notes,
		&b.Returning,
		&b.Referral,
		&b.Date,
		&b.StartMinute,
		&b.DurationHours,
		&b.EndMinute,
		&b.Status,
		&b.Paid,
		&b.NeedsReview,
		&b.SessionID,
		&b.ReminderSent,
		&b.CreatedAt,
		&cancelledAt,
	)
	if err != nil {
		return model.Booking{}, mapPgError(err)
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func isExclusion(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	if isExclusion(err) {
		return booking.ErrSlotConflict
	}
	return err
}
