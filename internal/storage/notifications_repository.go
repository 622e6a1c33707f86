package storage

import (
	"context"

	"github.com/myasnails/salonbook/libs/db"
)

// Notification is one delivery attempt, sent or failed.
type Notification struct {
	BookingID string
	Channel   string
	Recipient string
	Body      string
	Status    string
	Reason    string
}

type NotificationsRepository struct {
	pool *db.Pool
}

func NewNotificationsRepository(pool *db.Pool) *NotificationsRepository {
	return &NotificationsRepository{pool: pool}
}

func (r *NotificationsRepository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, channel, recipient, body, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.BookingID, n.Channel, n.Recipient, n.Body, n.Status, n.Reason)
	return err
}
