package sweep

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/outbox"
)

type fakeStore struct {
	due       map[string][]model.Booking
	purgedCut string
	purgedN   int64
}

func (f *fakeStore) DueReminders(_ context.Context, date string) ([]model.Booking, error) {
	return f.due[date], nil
}

func (f *fakeStore) PurgeBefore(_ context.Context, date string) (int64, error) {
	f.purgedCut = date
	return f.purgedN, nil
}

type fakeReminderTx struct {
	queued      []outbox.Event
	alreadySent map[string]bool
}

func (f *fakeReminderTx) MarkAndEnqueue(_ context.Context, bookingID string, evt outbox.Event) (bool, error) {
	if f.alreadySent[bookingID] {
		return false, nil
	}
	if f.alreadySent == nil {
		f.alreadySent = map[string]bool{}
	}
	f.alreadySent[bookingID] = true
	f.queued = append(f.queued, evt)
	return true, nil
}

func newWorker(store *fakeStore, tx *fakeReminderTx, now time.Time) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(store, tx, logger, time.Hour)
	w.now = func() time.Time { return now }
	return w
}

func TestRunOnce_QueuesTomorrowsReminders(t *testing.T) {
	now := time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{
		due: map[string][]model.Booking{
			"2026-09-04": {
				{ID: "bk-1", Name: "Dana", Phone: "5550001111", Service: "gel-x",
					Date: "2026-09-04", StartMinute: 720, EndMinute: 840, Status: model.StatusConfirmed},
			},
		},
		purgedN: 3,
	}
	tx := &fakeReminderTx{}
	w := newWorker(store, tx, now)

	summary, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RemindersQueued != 1 {
		t.Fatalf("want 1 reminder queued, got %d", summary.RemindersQueued)
	}
	if summary.Purged != 3 {
		t.Fatalf("want 3 purged, got %d", summary.Purged)
	}
	if store.purgedCut != "2026-09-03" {
		t.Fatalf("purge cutoff should be today, got %s", store.purgedCut)
	}

	evt := tx.queued[0]
	if evt.EventType != outbox.EventReminderDue {
		t.Fatalf("wrong event type %s", evt.EventType)
	}
	var payload map[string]string
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["start_time"] != "12:00" || payload["date"] != "2026-09-04" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestRunOnce_SecondRunQueuesNothing(t *testing.T) {
	now := time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{
		due: map[string][]model.Booking{
			"2026-09-04": {
				{ID: "bk-1", Date: "2026-09-04", StartMinute: 720, EndMinute: 840, Status: model.StatusConfirmed},
			},
		},
	}
	tx := &fakeReminderTx{}
	w := newWorker(store, tx, now)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// The booking would normally drop out of DueReminders once flagged; even
	// if a stale read returns it again, the tx refuses a second enqueue.
	summary, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.RemindersQueued != 0 {
		t.Fatalf("want 0 reminders on second run, got %d", summary.RemindersQueued)
	}
	if len(tx.queued) != 1 {
		t.Fatalf("want exactly one queued event, got %d", len(tx.queued))
	}
}

func TestRunOnce_NothingDue(t *testing.T) {
	w := newWorker(&fakeStore{}, &fakeReminderTx{}, time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC))
	summary, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RemindersQueued != 0 || summary.Purged != 0 {
		t.Fatalf("want empty summary, got %+v", summary)
	}
}
