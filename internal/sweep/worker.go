// Package sweep is the periodic maintenance worker: day-before reminders and
// the purge of past bookings. Each run stands alone, so a missed tick costs
// nothing but delay.
package sweep

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/outbox"
	"github.com/myasnails/salonbook/internal/timeslot"
)

type Store interface {
	DueReminders(ctx context.Context, date string) ([]model.Booking, error)
	PurgeBefore(ctx context.Context, date string) (int64, error)
}

type ReminderTx interface {
	MarkAndEnqueue(ctx context.Context, bookingID string, evt outbox.Event) (bool, error)
}

type Summary struct {
	RemindersQueued int
	Purged          int64
}

type Worker struct {
	store     Store
	reminders ReminderTx
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewWorker(store Store, reminders ReminderTx, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		store:     store,
		reminders: reminders,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		summary, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("sweep run failed", "err", err)
		} else if summary.RemindersQueued > 0 || summary.Purged > 0 {
			w.logger.Info("sweep run complete",
				"reminders_queued", summary.RemindersQueued, "purged", summary.Purged)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one sweep pass. The dashboard's manual trigger calls this
// directly.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	now := w.now()

	tomorrow := now.AddDate(0, 0, 1).Format(model.DateLayout)
	due, err := w.store.DueReminders(ctx, tomorrow)
	if err != nil {
		return summary, err
	}
	for _, b := range due {
		evt, err := reminderEvent(b)
		if err != nil {
			w.logger.Error("failed to build reminder event", "err", err, "booking_id", b.ID)
			continue
		}
		queued, err := w.reminders.MarkAndEnqueue(ctx, b.ID, evt)
		if err != nil {
			w.logger.Error("failed to queue reminder", "err", err, "booking_id", b.ID)
			continue
		}
		if queued {
			summary.RemindersQueued++
		}
	}

	today := now.Format(model.DateLayout)
	purged, err := w.store.PurgeBefore(ctx, today)
	if err != nil {
		return summary, err
	}
	summary.Purged = purged
	return summary, nil
}

func reminderEvent(b model.Booking) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]string{
		"booking_id": b.ID,
		"name":       b.Name,
		"phone":      b.Phone,
		"service":    b.Service,
		"date":       b.Date,
		"start_time": timeslot.Clock(b.StartMinute),
		"end_time":   timeslot.Clock(b.EndMinute),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     outbox.EventReminderDue,
		Payload:       payload,
	}, nil
}
