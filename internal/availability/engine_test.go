package availability

import (
	"context"
	"testing"
	"time"

	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/timeslot"
)

type fakeSlotStore struct {
	slots map[string][]model.AvailabilitySlot
}

func (f *fakeSlotStore) ListSlotsByDate(_ context.Context, date string) ([]model.AvailabilitySlot, error) {
	return f.slots[date], nil
}

type fakeBookingReader struct {
	bookings map[string][]model.Booking
}

func (f *fakeBookingReader) ListActiveByDate(_ context.Context, date string) ([]model.Booking, error) {
	var active []model.Booking
	for _, b := range f.bookings[date] {
		if b.Active() {
			active = append(active, b)
		}
	}
	return active, nil
}

// testNow pins the engine clock so the fixed dates below stay in the future.
var testNow = time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)

func booking(id, date string, startMinute, hours int, status string) model.Booking {
	return model.Booking{
		ID:            id,
		Date:          date,
		StartMinute:   startMinute,
		DurationHours: hours,
		EndMinute:     startMinute + hours*60,
		Status:        status,
		Paid:          status == model.StatusConfirmed,
		CreatedAt:     testNow,
	}
}

func newTestEngine(slots []model.AvailabilitySlot, bookings []model.Booking, grace time.Duration) *Engine {
	const date = "2026-09-04"
	ss := &fakeSlotStore{slots: map[string][]model.AvailabilitySlot{date: slots}}
	br := &fakeBookingReader{bookings: map[string][]model.Booking{date: bookings}}
	eng := NewEngine(ss, br, grace)
	eng.now = func() time.Time { return testNow }
	return eng
}

func TestAvailableStarts_OpenDayWithBusyBlock(t *testing.T) {
	date := "2026-09-04"
	eng := newTestEngine(
		[]model.AvailabilitySlot{{ID: "s1", Date: date, StartMinute: 480, EndMinute: 960}},
		[]model.Booking{booking("b1", date, 600, 2, model.StatusConfirmed)},
		0,
	)

	starts, err := eng.AvailableStarts(context.Background(), date, 2)
	if err != nil {
		t.Fatalf("AvailableStarts: %v", err)
	}
	want := []int{480, 720, 780, 840}
	if len(starts) != len(want) {
		t.Fatalf("got %v, want %v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("got %v, want %v", starts, want)
		}
	}
}

func TestAvailableStarts_PastDateYieldsEmpty(t *testing.T) {
	// Yesterday still has generated slots; the purge sweep has not run yet.
	past := "2026-08-31"
	ss := &fakeSlotStore{slots: map[string][]model.AvailabilitySlot{
		past: {{ID: "s1", Date: past, StartMinute: 480, EndMinute: 960}},
	}}
	eng := NewEngine(ss, &fakeBookingReader{}, 0)
	eng.now = func() time.Time { return testNow }

	starts, err := eng.AvailableStarts(context.Background(), past, 2)
	if err != nil {
		t.Fatalf("AvailableStarts: %v", err)
	}
	if len(starts) != 0 {
		t.Fatalf("past date must not be bookable, got %v", starts)
	}

	// Today itself stays bookable.
	today := testNow.Format(model.DateLayout)
	ss.slots[today] = []model.AvailabilitySlot{{ID: "s2", Date: today, StartMinute: 480, EndMinute: 960}}
	starts, err = eng.AvailableStarts(context.Background(), today, 2)
	if err != nil {
		t.Fatalf("AvailableStarts: %v", err)
	}
	if len(starts) == 0 {
		t.Fatal("today must remain bookable")
	}
}

func TestAvailableStarts_ClosedDateIsEmptyNotError(t *testing.T) {
	eng := newTestEngine(nil, nil, 0)
	starts, err := eng.AvailableStarts(context.Background(), "2026-09-04", 2)
	if err != nil {
		t.Fatalf("AvailableStarts: %v", err)
	}
	if len(starts) != 0 {
		t.Fatalf("expected no starts, got %v", starts)
	}
}

func TestAvailableStarts_NeverSelfContradicts(t *testing.T) {
	date := "2026-09-04"
	eng := newTestEngine(
		[]model.AvailabilitySlot{{ID: "s1", Date: date, StartMinute: 480, EndMinute: 960}},
		[]model.Booking{
			booking("b1", date, 600, 2, model.StatusConfirmed),
			booking("b2", date, 840, 1, model.StatusPending),
		},
		0,
	)

	for _, hours := range []int{1, 2, 3} {
		starts, err := eng.AvailableStarts(context.Background(), date, hours)
		if err != nil {
			t.Fatalf("AvailableStarts(%dh): %v", hours, err)
		}
		for _, s := range starts {
			conflict, err := eng.HasConflict(context.Background(), date, s, hours, "")
			if err != nil {
				t.Fatalf("HasConflict: %v", err)
			}
			if conflict {
				t.Fatalf("generated start %s for %dh conflicts with existing bookings", timeslot.Clock(s), hours)
			}
		}
	}
}

func TestHasConflict_ExcludesOwnBooking(t *testing.T) {
	date := "2026-09-04"
	eng := newTestEngine(
		[]model.AvailabilitySlot{{ID: "s1", Date: date, StartMinute: 480, EndMinute: 960}},
		[]model.Booking{booking("b1", date, 600, 2, model.StatusConfirmed)},
		0,
	)

	conflict, err := eng.HasConflict(context.Background(), date, 600, 2, "b1")
	if err != nil {
		t.Fatalf("HasConflict: %v", err)
	}
	if conflict {
		t.Fatal("a booking must not conflict with itself")
	}

	conflict, err = eng.HasConflict(context.Background(), date, 600, 2, "other")
	if err != nil {
		t.Fatalf("HasConflict: %v", err)
	}
	if !conflict {
		t.Fatal("expected conflict with existing booking")
	}
}

func TestHasConflict_CancelledBookingFreesSlot(t *testing.T) {
	date := "2026-09-04"
	cancelled := booking("b1", date, 600, 2, model.StatusCancelled)
	eng := newTestEngine(
		[]model.AvailabilitySlot{{ID: "s1", Date: date, StartMinute: 480, EndMinute: 960}},
		[]model.Booking{cancelled},
		0,
	)

	conflict, err := eng.HasConflict(context.Background(), date, 600, 2, "")
	if err != nil {
		t.Fatalf("HasConflict: %v", err)
	}
	if conflict {
		t.Fatal("cancelled booking must not block its interval")
	}
}

func TestHasConflict_StalePendingReleasedAfterGrace(t *testing.T) {
	date := "2026-09-04"
	stale := booking("b1", date, 600, 2, model.StatusPending)
	stale.CreatedAt = testNow.Add(-2 * time.Hour)
	eng := newTestEngine(
		[]model.AvailabilitySlot{{ID: "s1", Date: date, StartMinute: 480, EndMinute: 960}},
		[]model.Booking{stale},
		30*time.Minute,
	)

	conflict, err := eng.HasConflict(context.Background(), date, 600, 2, "")
	if err != nil {
		t.Fatalf("HasConflict: %v", err)
	}
	if conflict {
		t.Fatal("stale pending should not block after the grace window")
	}

	// With grace disabled the same pending still blocks.
	eng = newTestEngine(
		[]model.AvailabilitySlot{{ID: "s1", Date: date, StartMinute: 480, EndMinute: 960}},
		[]model.Booking{stale},
		0,
	)
	conflict, err = eng.HasConflict(context.Background(), date, 600, 2, "")
	if err != nil {
		t.Fatalf("HasConflict: %v", err)
	}
	if !conflict {
		t.Fatal("pending must block when no grace window is configured")
	}
}

func TestHasConflict_RejectsMalformedInterval(t *testing.T) {
	eng := newTestEngine(nil, nil, 0)
	if _, err := eng.HasConflict(context.Background(), "2026-09-04", 1380, 2, ""); err == nil {
		t.Fatal("expected error for interval past midnight")
	}
}
