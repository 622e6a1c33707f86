package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/myasnails/salonbook/internal/outbox"
	"github.com/myasnails/salonbook/internal/storage"
)

type fakeSMS struct {
	sent []string
	fail error
}

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, to+": "+body)
	return nil
}

func (f *fakeSMS) ProviderID() string { return "sms-fake" }

type fakeEmail struct{ sent []string }

func (f *fakeEmail) Send(to, subject, _ string) error {
	f.sent = append(f.sent, to+": "+subject)
	return nil
}

type fakeLog struct{ rows []storage.Notification }

func (f *fakeLog) Insert(_ context.Context, n storage.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

func payload(t *testing.T, extra map[string]string) []byte {
	t.Helper()
	m := map[string]string{
		"booking_id": "bk-1",
		"name":       "Dana",
		"phone":      "5550001111",
		"service":    "gel-x",
		"date":       "2026-09-04",
		"start_time": "12:00",
		"end_time":   "14:00",
	}
	for k, v := range extra {
		m[k] = v
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func newDispatcher(sms *fakeSMS, email *fakeEmail, log *fakeLog) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(sms, email, "owner@example.com", "Mya's Nails", log, logger)
}

func TestHandle_ConfirmedSendsSMSAndOwnerEmail(t *testing.T) {
	sms, email, log := &fakeSMS{}, &fakeEmail{}, &fakeLog{}
	d := newDispatcher(sms, email, log)

	if err := d.Handle(context.Background(), outbox.EventBookingConfirmed, payload(t, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sms.sent) != 1 || !strings.Contains(sms.sent[0], "confirmed for 2026-09-04 at 12:00") {
		t.Fatalf("unexpected sms: %v", sms.sent)
	}
	if len(email.sent) != 1 {
		t.Fatalf("want owner email, got %v", email.sent)
	}
	if len(log.rows) != 2 {
		t.Fatalf("want 2 log rows, got %d", len(log.rows))
	}
}

func TestHandle_ReminderMentionsTomorrow(t *testing.T) {
	sms, email, log := &fakeSMS{}, &fakeEmail{}, &fakeLog{}
	d := newDispatcher(sms, email, log)

	if err := d.Handle(context.Background(), outbox.EventReminderDue, payload(t, nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sms.sent) != 1 || !strings.Contains(sms.sent[0], "tomorrow") {
		t.Fatalf("unexpected sms: %v", sms.sent)
	}
}

func TestHandle_SendFailureLoggedNotReturned(t *testing.T) {
	sms := &fakeSMS{fail: errors.New("gateway down")}
	email, log := &fakeEmail{}, &fakeLog{}
	d := newDispatcher(sms, email, log)

	if err := d.Handle(context.Background(), outbox.EventBookingCancelled, payload(t, nil)); err != nil {
		t.Fatalf("send failure must not bubble up: %v", err)
	}
	if len(log.rows) != 1 || log.rows[0].Status != "failed" {
		t.Fatalf("want one failed log row, got %+v", log.rows)
	}
}

func TestHandle_NoPhoneSkipsSMS(t *testing.T) {
	sms, email, log := &fakeSMS{}, &fakeEmail{}, &fakeLog{}
	d := newDispatcher(sms, email, log)

	if err := d.Handle(context.Background(), outbox.EventBookingCancelled, payload(t, map[string]string{"phone": ""})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sms.sent) != 0 {
		t.Fatalf("no sms should go out without a phone, got %v", sms.sent)
	}
	if len(log.rows) != 1 || log.rows[0].Status != "skipped" {
		t.Fatalf("want one skipped log row, got %+v", log.rows)
	}
}

func TestHandle_MalformedPayloadDropped(t *testing.T) {
	sms, email, log := &fakeSMS{}, &fakeEmail{}, &fakeLog{}
	d := newDispatcher(sms, email, log)

	if err := d.Handle(context.Background(), outbox.EventBookingConfirmed, []byte("{not json")); err != nil {
		t.Fatalf("malformed payload must be dropped, not retried: %v", err)
	}
	if len(sms.sent) != 0 || len(log.rows) != 0 {
		t.Fatal("nothing should be sent for a malformed payload")
	}
}
