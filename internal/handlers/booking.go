package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/payments"
	"github.com/myasnails/salonbook/internal/timeslot"
	stripe "github.com/stripe/stripe-go/v79"
)

type BookingService interface {
	Create(ctx context.Context, draft booking.Draft) (model.Booking, error)
	BeginCheckout(ctx context.Context, bookingID string) (payments.Session, error)
	ReconcilePayment(ctx context.Context, sessionID string, meta map[string]string) (model.Booking, error)
	Cancel(ctx context.Context, id string) (model.Booking, error)
	Edit(ctx context.Context, id string, patch booking.Patch) (model.Booking, error)
	ListUpcoming(ctx context.Context, fromDate string, limit int) ([]model.Booking, error)
}

type SlotFinder interface {
	AvailableStarts(ctx context.Context, date string, durationHours int) ([]int, error)
}

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

type BookingHandler struct {
	svc      BookingService
	slots    SlotFinder
	verifier WebhookVerifier
	logger   *slog.Logger
}

func NewBookingHandler(svc BookingService, slots SlotFinder, verifier WebhookVerifier, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		svc:      svc,
		slots:    slots,
		verifier: verifier,
		logger:   logger,
	}
}

type bookRequest struct {
	BookingID    string `json:"booking_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Instagram    string `json:"instagram"`
	Service      string `json:"service"`
	ArtLevel     string `json:"art_level"`
	Length       string `json:"length"`
	SoakOff      string `json:"soakoff"`
	Pedicure     string `json:"pedicure"`
	PedicureType string `json:"pedicure_type"`
	BookingNails string `json:"booking_nails"`
	Notes        string `json:"notes"`
	Returning    string `json:"returning"`
	Referral     string `json:"referral"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	Duration     int    `json:"duration"`
}

type bookResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
}

type slotItem struct {
	StartMinute int    `json:"start_minute"`
	StartTime   string `json:"start_time"`
}

type bookingItem struct {
	BookingID   string `json:"booking_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Instagram   string `json:"instagram,omitempty"`
	Service     string `json:"service,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	Paid        bool   `json:"paid"`
	NeedsReview bool   `json:"needs_review,omitempty"`
}

func toBookingItem(b model.Booking) bookingItem {
	return bookingItem{
		BookingID:   b.ID,
		Name:        b.Name,
		Phone:       b.Phone,
		Instagram:   b.Instagram,
		Service:     b.Service,
		Notes:       b.Notes,
		Date:        b.Date,
		StartTime:   timeslot.Clock(b.StartMinute),
		EndTime:     timeslot.Clock(b.EndMinute),
		Status:      b.Status,
		Paid:        b.Paid,
		NeedsReview: b.NeedsReview,
	}
}

// Book creates a pending booking and opens its deposit checkout session. The
// client retries with the same booking_id and lands on the same booking.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	startMinute, err := timeslot.ParseClock(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time, want HH:MM")
		return
	}

	draft := booking.Draft{
		ID:            strings.TrimSpace(req.BookingID),
		Name:          strings.TrimSpace(req.Name),
		Phone:         strings.TrimSpace(req.Phone),
		Instagram:     strings.TrimSpace(req.Instagram),
		Service:       req.Service,
		ArtLevel:      req.ArtLevel,
		Length:        req.Length,
		SoakOff:       req.SoakOff,
		Pedicure:      req.Pedicure,
		PedicureType:  req.PedicureType,
		BookingNails:  req.BookingNails,
		Notes:         req.Notes,
		Returning:     req.Returning,
		Referral:      req.Referral,
		Date:          strings.TrimSpace(req.Date),
		StartMinute:   startMinute,
		DurationHours: req.Duration,
	}
	if err := draft.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.svc.Create(r.Context(), draft)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	sess, err := h.svc.BeginCheckout(r.Context(), b.ID)
	if err != nil {
		h.logger.Error("checkout session failed", "err", err, "booking_id", b.ID)
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}

	writeJSON(w, http.StatusCreated, bookResponse{
		BookingID:   b.ID,
		Status:      b.Status,
		CheckoutURL: sess.URL,
	})
}

// Slots lists bookable start times for a date and duration.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing date")
		return
	}
	duration := 2
	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		duration = d
	}

	starts, err := h.slots.AvailableStarts(r.Context(), date, duration)
	if err != nil {
		h.logger.Error("slot lookup failed", "err", err, "date", date)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		items = append(items, slotItem{StartMinute: s, StartTime: timeslot.Clock(s)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "duration": duration, "slots": items})
}

type confirmPaymentRequest struct {
	SessionID string `json:"session_id"`
}

// ConfirmPayment is the client-side poll after the checkout redirect. It
// carries no proof of payment, so the service re-verifies with the provider.
func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}

	b, err := h.svc.ReconcilePayment(r.Context(), req.SessionID, nil)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(b))
}

// StripeWebhook handles checkout.session.completed. The signature check makes
// the event's metadata trustworthy, so it reconciles without a provider
// round trip. Errors during reconciliation return 500 so Stripe redelivers.
func (h *BookingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature rejected", "err", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if event.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("invalid checkout session in webhook", "err", err)
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if _, err := h.svc.ReconcilePayment(r.Context(), session.ID, session.Metadata); err != nil {
		h.logger.Error("webhook reconciliation failed", "err", err, "session_id", session.ID)
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}
