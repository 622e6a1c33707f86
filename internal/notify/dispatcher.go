package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/myasnails/salonbook/internal/outbox"
	"github.com/myasnails/salonbook/internal/storage"
)

// NotificationLog records the outcome of every delivery attempt.
type NotificationLog interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type bookingPayload struct {
	BookingID    string `json:"booking_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	OldDate      string `json:"old_date"`
	OldStartTime string `json:"old_start_time"`
}

type Dispatcher struct {
	sms        SMSSender
	email      EmailSender
	ownerEmail string
	salonName  string
	log        NotificationLog
	logger     *slog.Logger
}

func NewDispatcher(sms SMSSender, email EmailSender, ownerEmail, salonName string, log NotificationLog, logger *slog.Logger) *Dispatcher {
	if salonName == "" {
		salonName = "Mya's Nails"
	}
	return &Dispatcher{
		sms:        sms,
		email:      email,
		ownerEmail: ownerEmail,
		salonName:  salonName,
		log:        log,
		logger:     logger,
	}
}

// Handle processes one booking event. Unknown event types and malformed
// payloads are dropped with a log line; retrying them would never succeed.
func (d *Dispatcher) Handle(ctx context.Context, eventType string, raw []byte) error {
	var p bookingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.logger.Error("invalid event payload", "err", err, "event_type", eventType)
		return nil
	}
	if p.BookingID == "" {
		d.logger.Error("event payload missing booking_id", "event_type", eventType)
		return nil
	}

	switch eventType {
	case outbox.EventBookingConfirmed:
		d.sendSMS(ctx, p, fmt.Sprintf(
			"Hi %s! Your %s appointment is confirmed for %s at %s. See you then! - %s",
			p.Name, p.Service, p.Date, p.StartTime, d.salonName))
		d.sendOwnerEmail(ctx, p, "New booking confirmed", fmt.Sprintf(
			"%s booked %s on %s, %s to %s.\nPhone: %s",
			p.Name, p.Service, p.Date, p.StartTime, p.EndTime, p.Phone))
	case outbox.EventBookingCancelled:
		d.sendSMS(ctx, p, fmt.Sprintf(
			"Hi %s, your appointment on %s at %s has been cancelled. Text us any time to rebook. - %s",
			p.Name, p.Date, p.StartTime, d.salonName))
	case outbox.EventBookingUpdated:
		d.sendSMS(ctx, p, fmt.Sprintf(
			"Hi %s, your appointment has been moved from %s at %s to %s at %s. - %s",
			p.Name, p.OldDate, p.OldStartTime, p.Date, p.StartTime, d.salonName))
	case outbox.EventReminderDue:
		d.sendSMS(ctx, p, fmt.Sprintf(
			"Hi %s! Reminder: your %s appointment is tomorrow, %s at %s. - %s",
			p.Name, p.Service, p.Date, p.StartTime, d.salonName))
	default:
		d.logger.Info("ignoring event", "event_type", eventType)
	}
	return nil
}

func (d *Dispatcher) sendSMS(ctx context.Context, p bookingPayload, body string) {
	status, reason := "sent", ""
	if p.Phone == "" {
		status, reason = "skipped", "no phone on booking"
	} else if err := d.sms.Send(ctx, p.Phone, body); err != nil {
		status, reason = "failed", err.Error()
		d.logger.Error("sms send failed", "err", err, "booking_id", p.BookingID)
	}
	d.record(ctx, storage.Notification{
		BookingID: p.BookingID,
		Channel:   "sms",
		Recipient: p.Phone,
		Body:      body,
		Status:    status,
		Reason:    reason,
	})
}

func (d *Dispatcher) sendOwnerEmail(ctx context.Context, p bookingPayload, subject, body string) {
	if d.ownerEmail == "" {
		return
	}
	status, reason := "sent", ""
	if err := d.email.Send(d.ownerEmail, subject, body); err != nil {
		status, reason = "failed", err.Error()
		d.logger.Error("owner email failed", "err", err, "booking_id", p.BookingID)
	}
	d.record(ctx, storage.Notification{
		BookingID: p.BookingID,
		Channel:   "email",
		Recipient: d.ownerEmail,
		Body:      subject,
		Status:    status,
		Reason:    reason,
	})
}

func (d *Dispatcher) record(ctx context.Context, n storage.Notification) {
	if err := d.log.Insert(ctx, n); err != nil {
		d.logger.Error("failed to persist notification", "err", err, "booking_id", n.BookingID)
	}
}
