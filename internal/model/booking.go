package model

import (
	"time"

	"github.com/myasnails/salonbook/internal/timeslot"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// DateLayout is the calendar-day format used everywhere (DB date columns,
// API payloads, Stripe metadata).
const DateLayout = "2006-01-02"

// Booking is one client's reserved service window. EndMinute is always derived
// from StartMinute + DurationHours and never set independently.
type Booking struct {
	ID        string
	Name      string
	Phone     string
	Instagram string

	// Service attributes are opaque pass-through strings; the core never
	// validates them.
	Service      string
	ArtLevel     string
	Length       string
	SoakOff      string
	Pedicure     string
	PedicureType string
	BookingNails string
	Notes        string
	Returning    string
	Referral     string

	Date          string // YYYY-MM-DD
	StartMinute   int
	DurationHours int
	EndMinute     int

	Status       string
	Paid         bool
	NeedsReview  bool
	SessionID    string
	ReminderSent bool

	CreatedAt   time.Time
	CancelledAt *time.Time
}

func (b *Booking) Interval() timeslot.Interval {
	return timeslot.Interval{Start: b.StartMinute, End: b.EndMinute}
}

// Active reports whether the booking blocks its time window.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// AvailabilitySlot is a window during which the business accepts bookings on a
// given date. Bookings consume capacity within a slot; they never shrink it.
type AvailabilitySlot struct {
	ID          string
	Date        string // YYYY-MM-DD
	StartMinute int
	EndMinute   int
}

func (s *AvailabilitySlot) Interval() timeslot.Interval {
	return timeslot.Interval{Start: s.StartMinute, End: s.EndMinute}
}

// ScheduleDay is one row of the weekly template consumed by month generation.
type ScheduleDay struct {
	DayOfWeek   int // 0 = Sunday
	IsOpen      bool
	StartMinute int
	EndMinute   int
}

// GalleryItem is a photo in the owner-managed gallery. ImagePath is the key in
// the blob store, not a full URL.
type GalleryItem struct {
	ID        string
	Title     string
	ImagePath string
	CreatedAt time.Time
}
