// Package booking owns every write to the bookings table: the request form,
// payment reconciliation, owner edits, and cancellation all go through the
// Service here. No other component mutates bookings.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/outbox"
	"github.com/myasnails/salonbook/internal/payments"
	"github.com/myasnails/salonbook/internal/timeslot"
)

// Store is the persistence the state machine needs. The Postgres
// implementation backs the conflict guarantees with an exclusion constraint;
// the in-process conflict check is a fast path, not the authority.
type Store interface {
	GetByID(ctx context.Context, id string) (model.Booking, error)
	GetBySession(ctx context.Context, sessionID string) (model.Booking, error)

	// CreatePending inserts a pending/unpaid booking. Replaying the same ID
	// returns the existing row unchanged. An overlapping active booking maps
	// to ErrSlotConflict.
	CreatePending(ctx context.Context, b model.Booking) (model.Booking, error)

	SetSession(ctx context.Context, id, sessionID string) error

	// Confirm marks the booking paid+confirmed.
	Confirm(ctx context.Context, id string, needsReview bool) (model.Booking, error)

	// UpsertConfirmed inserts a paid/confirmed booking keyed on its session
	// id. A row already stored under the booking id is claimed and confirmed
	// instead. The bool reports whether the booking was newly confirmed; a
	// replay returns the existing row and false.
	UpsertConfirmed(ctx context.Context, b model.Booking) (model.Booking, bool, error)

	Update(ctx context.Context, b model.Booking) (model.Booking, error)
	Cancel(ctx context.Context, id string) (model.Booking, error)
	ListUpcoming(ctx context.Context, fromDate string, limit int) ([]model.Booking, error)
}

type ConflictChecker interface {
	HasConflict(ctx context.Context, date string, startMinute, durationHours int, excludeID string) (bool, error)
}

// EventSink receives domain events for the notification dispatcher. Sends are
// best-effort downstream; a sink failure is logged and never unwinds a state
// change that already committed.
type EventSink interface {
	Insert(ctx context.Context, evt outbox.Event) error
}

type Service struct {
	store     Store
	conflicts ConflictChecker
	payments  payments.Provider
	events    EventSink
	logger    *slog.Logger
}

func NewService(store Store, conflicts ConflictChecker, provider payments.Provider, events EventSink, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		conflicts: conflicts,
		payments:  provider,
		events:    events,
		logger:    logger,
	}
}

// Create validates the draft, guards against overlap, and persists a
// pending/unpaid booking. Safe to call repeatedly with the same draft ID.
func (s *Service) Create(ctx context.Context, draft Draft) (model.Booking, error) {
	if err := draft.Validate(); err != nil {
		return model.Booking{}, err
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}

	conflict, err := s.conflicts.HasConflict(ctx, draft.Date, draft.StartMinute, draft.DurationHours, draft.ID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return model.Booking{}, ErrSlotConflict
	}

	b := draft.booking()
	b.Status = model.StatusPending
	created, err := s.store.CreatePending(ctx, b)
	if err != nil {
		return model.Booking{}, err
	}
	return created, nil
}

// BeginCheckout opens a deposit checkout session for a pending booking and
// records the session reference for later reconciliation.
func (s *Service) BeginCheckout(ctx context.Context, bookingID string) (payments.Session, error) {
	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return payments.Session{}, err
	}
	if b.Status == model.StatusCancelled {
		return payments.Session{}, ErrNotFound
	}
	if b.Status == model.StatusConfirmed {
		return payments.Session{}, ErrAlreadyConfirmed
	}

	draft := draftFromBooking(&b)
	sess, err := s.payments.CreateDepositSession(ctx, b.ID, draft.Metadata())
	if err != nil {
		return payments.Session{}, fmt.Errorf("payment provider: %w", err)
	}
	if err := s.store.SetSession(ctx, b.ID, sess.ID); err != nil {
		return payments.Session{}, err
	}
	return sess, nil
}

// ReconcilePayment advances a booking to paid/confirmed once the payment
// provider reports its session complete. It is invoked from both the webhook
// and the client confirmation poll and must converge for any interleaving:
// the upsert is keyed on the session reference, so running it twice for the
// same session yields exactly one confirmed booking.
//
// meta is the session metadata when the caller already has it (webhook);
// pass nil to fetch and verify the session from the provider (poll).
func (s *Service) ReconcilePayment(ctx context.Context, sessionID string, meta map[string]string) (model.Booking, error) {
	if sessionID == "" {
		return model.Booking{}, fmt.Errorf("missing session id")
	}

	// The webhook arrives with signature-verified metadata. A bare session id
	// from the client poll proves nothing, so fetch the session and check the
	// provider reports it paid before touching the booking.
	if meta == nil {
		info, err := s.payments.RetrieveSession(ctx, sessionID)
		if err != nil {
			return model.Booking{}, fmt.Errorf("payment provider: %w", err)
		}
		if !info.Paid {
			return model.Booking{}, ErrPaymentIncomplete
		}
		meta = info.Metadata
	}

	b, err := s.store.GetBySession(ctx, sessionID)
	switch {
	case err == nil:
		return s.confirmExisting(ctx, b)
	case errors.Is(err, ErrNotFound):
		return s.confirmFromSession(ctx, sessionID, meta)
	default:
		return model.Booking{}, err
	}
}

func (s *Service) confirmExisting(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.Status == model.StatusConfirmed {
		return b, nil
	}

	conflict, err := s.conflicts.HasConflict(ctx, b.Date, b.StartMinute, b.DurationHours, b.ID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		// The deposit is already captured; refunds are a back-office process.
		// Confirm anyway and flag the row for manual review.
		s.logger.Warn("confirming booking despite slot conflict",
			"booking_id", b.ID, "date", b.Date, "start", timeslot.Clock(b.StartMinute))
	}

	confirmed, err := s.store.Confirm(ctx, b.ID, conflict)
	if err != nil {
		return model.Booking{}, err
	}
	s.emit(ctx, outbox.EventBookingConfirmed, &confirmed, nil)
	return confirmed, nil
}

func (s *Service) confirmFromSession(ctx context.Context, sessionID string, meta map[string]string) (model.Booking, error) {
	draft, err := DraftFromMetadata(meta)
	if err != nil {
		return model.Booking{}, err
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}

	conflict, err := s.conflicts.HasConflict(ctx, draft.Date, draft.StartMinute, draft.DurationHours, draft.ID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		s.logger.Warn("inserting paid booking despite slot conflict",
			"session_id", sessionID, "date", draft.Date, "start", timeslot.Clock(draft.StartMinute))
	}

	b := draft.booking()
	b.Status = model.StatusConfirmed
	b.Paid = true
	b.NeedsReview = conflict
	b.SessionID = sessionID

	stored, created, err := s.store.UpsertConfirmed(ctx, b)
	if err != nil {
		return model.Booking{}, err
	}
	if created {
		s.emit(ctx, outbox.EventBookingConfirmed, &stored, nil)
	}
	return stored, nil
}

// Cancel marks a booking cancelled. Cancelling an already-cancelled booking is
// a no-op. The cancellation SMS rides the event stream; its failure never
// fails the cancel.
func (s *Service) Cancel(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.StatusCancelled {
		return b, nil
	}

	cancelled, err := s.store.Cancel(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	s.emit(ctx, outbox.EventBookingCancelled, &cancelled, nil)
	return cancelled, nil
}

// Patch is an owner-only correction. Nil fields are left unchanged.
type Patch struct {
	Name          *string
	Phone         *string
	Service       *string
	ArtLevel      *string
	Notes         *string
	Date          *string
	StartMinute   *int
	DurationHours *int
	Paid          *bool
}

// Edit applies a patch, re-guarding the schedule when date or time change and
// recomputing the end time. Marking paid on a pending booking confirms it.
func (s *Service) Edit(ctx context.Context, id string, patch Patch) (model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.StatusCancelled {
		return model.Booking{}, ErrNotFound
	}

	oldDate, oldStart := b.Date, b.StartMinute

	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.Phone != nil {
		b.Phone = *patch.Phone
	}
	if patch.Service != nil {
		b.Service = *patch.Service
	}
	if patch.ArtLevel != nil {
		b.ArtLevel = *patch.ArtLevel
	}
	if patch.Notes != nil {
		b.Notes = *patch.Notes
	}
	if patch.Date != nil {
		b.Date = *patch.Date
	}
	if patch.StartMinute != nil {
		b.StartMinute = *patch.StartMinute
	}
	if patch.DurationHours != nil {
		b.DurationHours = *patch.DurationHours
	}

	rescheduled := b.Date != oldDate || b.StartMinute != oldStart || patch.DurationHours != nil
	if rescheduled {
		if _, err := time.Parse(model.DateLayout, b.Date); err != nil {
			return model.Booking{}, fmt.Errorf("invalid date %q", b.Date)
		}
		if b.DurationHours < 1 {
			return model.Booking{}, fmt.Errorf("duration must be at least one hour")
		}
		if _, err := timeslot.New(b.StartMinute, b.StartMinute+b.DurationHours*60); err != nil {
			return model.Booking{}, fmt.Errorf("invalid time window: %w", err)
		}
		conflict, err := s.conflicts.HasConflict(ctx, b.Date, b.StartMinute, b.DurationHours, b.ID)
		if err != nil {
			return model.Booking{}, fmt.Errorf("conflict check: %w", err)
		}
		if conflict {
			return model.Booking{}, ErrSlotConflict
		}
	}
	b.EndMinute = b.StartMinute + b.DurationHours*60

	confirmedNow := false
	if patch.Paid != nil && *patch.Paid && !b.Paid {
		b.Paid = true
		if b.Status == model.StatusPending {
			b.Status = model.StatusConfirmed
			confirmedNow = true
		}
	}

	updated, err := s.store.Update(ctx, b)
	if err != nil {
		return model.Booking{}, err
	}

	if rescheduled && (updated.Date != oldDate || updated.StartMinute != oldStart) {
		s.emit(ctx, outbox.EventBookingUpdated, &updated, map[string]string{
			"old_date":       oldDate,
			"old_start_time": timeslot.Clock(oldStart),
		})
	}
	if confirmedNow {
		s.emit(ctx, outbox.EventBookingConfirmed, &updated, nil)
	}
	return updated, nil
}

func (s *Service) ListUpcoming(ctx context.Context, fromDate string, limit int) ([]model.Booking, error) {
	return s.store.ListUpcoming(ctx, fromDate, limit)
}

func (s *Service) emit(ctx context.Context, eventType string, b *model.Booking, extra map[string]string) {
	payload := map[string]string{
		"booking_id": b.ID,
		"name":       b.Name,
		"phone":      b.Phone,
		"service":    b.Service,
		"date":       b.Date,
		"start_time": timeslot.Clock(b.StartMinute),
		"end_time":   timeslot.Clock(b.EndMinute),
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to build event payload", "err", err, "event_type", eventType)
		return
	}
	if err := s.events.Insert(ctx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       raw,
	}); err != nil {
		s.logger.Error("failed to enqueue event", "err", err, "event_type", eventType, "booking_id", b.ID)
	}
}

func draftFromBooking(b *model.Booking) Draft {
	return Draft{
		ID:            b.ID,
		Name:          b.Name,
		Phone:         b.Phone,
		Instagram:     b.Instagram,
		Service:       b.Service,
		ArtLevel:      b.ArtLevel,
		Length:        b.Length,
		SoakOff:       b.SoakOff,
		Pedicure:      b.Pedicure,
		PedicureType:  b.PedicureType,
		BookingNails:  b.BookingNails,
		Notes:         b.Notes,
		Returning:     b.Returning,
		Referral:      b.Referral,
		Date:          b.Date,
		StartMinute:   b.StartMinute,
		DurationHours: b.DurationHours,
	}
}
