package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/payments"
	stripe "github.com/stripe/stripe-go/v79"
)

type fakeBookingService struct {
	created    []booking.Draft
	createErr  error
	reconciled []string
	cancelled  []string
}

func (f *fakeBookingService) Create(_ context.Context, draft booking.Draft) (model.Booking, error) {
	if f.createErr != nil {
		return model.Booking{}, f.createErr
	}
	if draft.ID == "" {
		draft.ID = "bk-generated"
	}
	f.created = append(f.created, draft)
	return model.Booking{
		ID: draft.ID, Name: draft.Name, Date: draft.Date,
		StartMinute: draft.StartMinute, EndMinute: draft.StartMinute + draft.DurationHours*60,
		Status: model.StatusPending,
	}, nil
}

func (f *fakeBookingService) BeginCheckout(_ context.Context, bookingID string) (payments.Session, error) {
	return payments.Session{ID: "cs_" + bookingID, URL: "https://checkout.example/" + bookingID}, nil
}

func (f *fakeBookingService) ReconcilePayment(_ context.Context, sessionID string, _ map[string]string) (model.Booking, error) {
	if sessionID == "cs_unpaid" {
		return model.Booking{}, booking.ErrPaymentIncomplete
	}
	f.reconciled = append(f.reconciled, sessionID)
	return model.Booking{ID: "bk-1", Status: model.StatusConfirmed, Paid: true, Date: "2026-09-04"}, nil
}

func (f *fakeBookingService) Cancel(_ context.Context, id string) (model.Booking, error) {
	f.cancelled = append(f.cancelled, id)
	return model.Booking{ID: id, Status: model.StatusCancelled}, nil
}

func (f *fakeBookingService) Edit(_ context.Context, id string, _ booking.Patch) (model.Booking, error) {
	return model.Booking{ID: id, Status: model.StatusConfirmed}, nil
}

func (f *fakeBookingService) ListUpcoming(_ context.Context, _ string, _ int) ([]model.Booking, error) {
	return nil, nil
}

type fakeSlotFinder struct{ starts []int }

func (f *fakeSlotFinder) AvailableStarts(_ context.Context, _ string, _ int) ([]int, error) {
	return f.starts, nil
}

type fakeVerifier struct {
	event stripe.Event
	err   error
}

func (f *fakeVerifier) VerifyWebhook(_ []byte, _ string) (stripe.Event, error) {
	return f.event, f.err
}

func newBookingHandler(svc *fakeBookingService, slots *fakeSlotFinder, verifier *fakeVerifier) *BookingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBookingHandler(svc, slots, verifier, logger)
}

func futureDate() string {
	return time.Now().AddDate(0, 0, 7).Format("2006-01-02")
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestBook_CreatesAndReturnsCheckoutURL(t *testing.T) {
	svc := &fakeBookingService{}
	h := newBookingHandler(svc, &fakeSlotFinder{}, &fakeVerifier{})

	rec := postJSON(t, h.Book, "/api/v1/public/book", map[string]any{
		"name":       "Dana",
		"phone":      "5550001111",
		"date":       futureDate(),
		"start_time": "12:00",
		"duration":   2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CheckoutURL == "" || resp.BookingID == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}
	if len(svc.created) != 1 || svc.created[0].StartMinute != 720 {
		t.Fatalf("draft not forwarded: %+v", svc.created)
	}
}

func TestBook_RejectsBadClockAndMissingName(t *testing.T) {
	h := newBookingHandler(&fakeBookingService{}, &fakeSlotFinder{}, &fakeVerifier{})

	rec := postJSON(t, h.Book, "/api/v1/public/book", map[string]any{
		"name": "Dana", "phone": "5550001111", "date": futureDate(),
		"start_time": "noonish", "duration": 2,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad clock: want 400, got %d", rec.Code)
	}

	rec = postJSON(t, h.Book, "/api/v1/public/book", map[string]any{
		"phone": "5550001111", "date": futureDate(),
		"start_time": "12:00", "duration": 2,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: want 400, got %d", rec.Code)
	}
}

func TestBook_RejectsPastDate(t *testing.T) {
	svc := &fakeBookingService{}
	h := newBookingHandler(svc, &fakeSlotFinder{}, &fakeVerifier{})

	rec := postJSON(t, h.Book, "/api/v1/public/book", map[string]any{
		"name": "Dana", "phone": "5550001111",
		"date":       time.Now().AddDate(0, 0, -1).Format("2006-01-02"),
		"start_time": "12:00", "duration": 2,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past date: want 400, got %d", rec.Code)
	}
	if len(svc.created) != 0 {
		t.Fatal("past-dated draft must not reach the service")
	}
}

func TestBook_ConflictMapsTo409(t *testing.T) {
	svc := &fakeBookingService{createErr: booking.ErrSlotConflict}
	h := newBookingHandler(svc, &fakeSlotFinder{}, &fakeVerifier{})

	rec := postJSON(t, h.Book, "/api/v1/public/book", map[string]any{
		"name": "Dana", "phone": "5550001111", "date": futureDate(),
		"start_time": "12:00", "duration": 2,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
}

func TestSlots_FormatsStarts(t *testing.T) {
	h := newBookingHandler(&fakeBookingService{}, &fakeSlotFinder{starts: []int{480, 720}}, &fakeVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?date=2026-09-04&duration=2", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"08:00"`) || !strings.Contains(body, `"12:00"`) {
		t.Fatalf("missing formatted starts: %s", body)
	}
}

func TestSlots_RequiresDate(t *testing.T) {
	h := newBookingHandler(&fakeBookingService{}, &fakeSlotFinder{}, &fakeVerifier{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestConfirmPayment_UnpaidMapsTo402(t *testing.T) {
	h := newBookingHandler(&fakeBookingService{}, &fakeSlotFinder{}, &fakeVerifier{})

	rec := postJSON(t, h.ConfirmPayment, "/api/v1/public/payments/confirm", map[string]string{
		"session_id": "cs_unpaid",
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("want 402, got %d", rec.Code)
	}
}

func TestStripeWebhook_CompletedSessionReconciles(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"id":       "cs_live_1",
		"metadata": map[string]string{"booking_id": "bk-1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := &fakeBookingService{}
	h := newBookingHandler(svc, &fakeSlotFinder{}, &fakeVerifier{
		event: stripe.Event{
			Type: "checkout.session.completed",
			Data: &stripe.EventData{Raw: raw},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.reconciled) != 1 || svc.reconciled[0] != "cs_live_1" {
		t.Fatalf("session not reconciled: %v", svc.reconciled)
	}
}

func TestStripeWebhook_BadSignatureRejected(t *testing.T) {
	h := newBookingHandler(&fakeBookingService{}, &fakeSlotFinder{}, &fakeVerifier{
		err: errors.New("bad signature"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}

func TestStripeWebhook_IgnoresOtherEvents(t *testing.T) {
	svc := &fakeBookingService{}
	h := newBookingHandler(svc, &fakeSlotFinder{}, &fakeVerifier{
		event: stripe.Event{Type: "payment_intent.created", Data: &stripe.EventData{Raw: []byte("{}")}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if len(svc.reconciled) != 0 {
		t.Fatal("other event types must not reconcile")
	}
}
