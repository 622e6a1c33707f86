package storage

import (
	"context"
	"errors"

	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/outbox"
	"github.com/myasnails/salonbook/libs/db"
)

// ReminderTx commits the reminder flag and the reminder event together so a
// crash between the two cannot double-send.
type ReminderTx struct {
	pool     *db.Pool
	bookings *BookingRepository
	outbox   *outbox.Repository
}

func NewReminderTx(pool *db.Pool, bookings *BookingRepository, outboxRepo *outbox.Repository) *ReminderTx {
	return &ReminderTx{pool: pool, bookings: bookings, outbox: outboxRepo}
}

// MarkAndEnqueue flips reminder_sent and enqueues the event in one
// transaction. Returns false when the flag was already set, which happens if
// two sweep runs race on the same booking.
func (r *ReminderTx) MarkAndEnqueue(ctx context.Context, bookingID string, evt outbox.Event) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.bookings.MarkReminderSent(ctx, tx, bookingID); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := r.outbox.InsertTx(ctx, tx, evt); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
