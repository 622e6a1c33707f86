// Package availability computes free slot starts and booking conflicts for a
// calendar day. It is read-only: nothing here writes to the store.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/timeslot"
)

type SlotStore interface {
	ListSlotsByDate(ctx context.Context, date string) ([]model.AvailabilitySlot, error)
}

type BookingReader interface {
	// ListActiveByDate returns bookings on the date with status pending or
	// confirmed, in no particular order.
	ListActiveByDate(ctx context.Context, date string) ([]model.Booking, error)
}

type Engine struct {
	slots    SlotStore
	bookings BookingReader

	// pendingGrace > 0 lets an unpaid pending booking stop blocking its slot
	// after the grace window (abandoned checkout). 0 means pending blocks
	// forever, which matches the historical behavior.
	pendingGrace time.Duration
	now          func() time.Time
}

func NewEngine(slots SlotStore, bookings BookingReader, pendingGrace time.Duration) *Engine {
	return &Engine{
		slots:        slots,
		bookings:     bookings,
		pendingGrace: pendingGrace,
		now:          time.Now,
	}
}

// AvailableStarts returns the free start times (minutes since midnight) on a
// date for a booking of the requested duration, hourly granularity, sorted
// ascending and de-duplicated. A date with no slots yields an empty result,
// not an error.
func (e *Engine) AvailableStarts(ctx context.Context, date string, durationHours int) ([]int, error) {
	if durationHours < 1 {
		return nil, fmt.Errorf("duration must be at least one hour")
	}
	// A past date is never bookable, even while its generated slots are still
	// waiting for the purge sweep.
	if date < e.now().Format(model.DateLayout) {
		return nil, nil
	}

	slots, err := e.slots.ListSlotsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, nil
	}

	busy, err := e.busyIntervals(ctx, date, "")
	if err != nil {
		return nil, err
	}

	duration := durationHours * 60
	seen := make(map[int]struct{})
	var starts []int
	for _, slot := range slots {
		free := timeslot.Subtract(slot.Interval(), busy)
		for _, s := range timeslot.CandidateStarts(free, duration, timeslot.DefaultStep) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			starts = append(starts, s)
		}
	}
	sort.Ints(starts)
	return starts, nil
}

// HasConflict reports whether any active booking on the date, other than
// excludeID, overlaps [startMinute, startMinute+durationHours*60).
func (e *Engine) HasConflict(ctx context.Context, date string, startMinute, durationHours int, excludeID string) (bool, error) {
	candidate, err := timeslot.New(startMinute, startMinute+durationHours*60)
	if err != nil {
		return false, err
	}

	busy, err := e.busyIntervals(ctx, date, excludeID)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) busyIntervals(ctx context.Context, date string, excludeID string) ([]timeslot.Interval, error) {
	bookings, err := e.bookings.ListActiveByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	var cutoff time.Time
	if e.pendingGrace > 0 {
		cutoff = e.now().Add(-e.pendingGrace)
	}

	busy := make([]timeslot.Interval, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		if !b.Active() {
			continue
		}
		if b.ID != "" && b.ID == excludeID {
			continue
		}
		// Stale unpaid pendings stop blocking once past the grace window.
		if b.Status == model.StatusPending && !b.Paid && !cutoff.IsZero() && b.CreatedAt.Before(cutoff) {
			continue
		}
		busy = append(busy, b.Interval())
	}
	return busy, nil
}
