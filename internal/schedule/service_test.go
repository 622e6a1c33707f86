package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/myasnails/salonbook/internal/model"
)

type fakeTemplate struct {
	days map[int]model.ScheduleDay
}

func (f *fakeTemplate) ListTemplate(_ context.Context) ([]model.ScheduleDay, error) {
	var out []model.ScheduleDay
	for _, d := range f.days {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeTemplate) UpsertDay(_ context.Context, d model.ScheduleDay) error {
	if f.days == nil {
		f.days = map[int]model.ScheduleDay{}
	}
	f.days[d.DayOfWeek] = d
	return nil
}

type fakeSlots struct {
	existing map[string]bool
	inserted []model.AvailabilitySlot
}

func (f *fakeSlots) DatesWithSlots(_ context.Context, fromDate, toDate string) (map[string]bool, error) {
	out := map[string]bool{}
	for d := range f.existing {
		if d >= fromDate && d <= toDate {
			out[d] = true
		}
	}
	return out, nil
}

func (f *fakeSlots) InsertSlots(_ context.Context, slots []model.AvailabilitySlot) (int, error) {
	f.inserted = append(f.inserted, slots...)
	return len(slots), nil
}

func TestSetDay_Validates(t *testing.T) {
	svc := NewService(&fakeTemplate{}, &fakeSlots{})
	ctx := context.Background()

	if err := svc.SetDay(ctx, model.ScheduleDay{DayOfWeek: 7, IsOpen: true, StartMinute: 600, EndMinute: 1080}); err == nil {
		t.Fatal("day_of_week 7 must be rejected")
	}
	if err := svc.SetDay(ctx, model.ScheduleDay{DayOfWeek: 2, IsOpen: true, StartMinute: 1080, EndMinute: 600}); err == nil {
		t.Fatal("inverted hours must be rejected")
	}
	// Closed days carry no hours to validate.
	if err := svc.SetDay(ctx, model.ScheduleDay{DayOfWeek: 0, IsOpen: false}); err != nil {
		t.Fatalf("closed day: %v", err)
	}
}

func TestGenerateMonth_OpenDaysOnly(t *testing.T) {
	// Open Tuesdays 10:00 to 18:00, everything else closed.
	tpl := &fakeTemplate{days: map[int]model.ScheduleDay{
		2: {DayOfWeek: 2, IsOpen: true, StartMinute: 600, EndMinute: 1080},
	}}
	slots := &fakeSlots{}
	svc := NewService(tpl, slots)

	// September 2026 has five Tuesdays: 1, 8, 15, 22, 29.
	n, err := svc.GenerateMonth(context.Background(), 2026, time.September)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n != 5 {
		t.Fatalf("want 5 slots, got %d", n)
	}
	for _, s := range slots.inserted {
		day, err := time.Parse(model.DateLayout, s.Date)
		if err != nil {
			t.Fatalf("bad date %q: %v", s.Date, err)
		}
		if day.Weekday() != time.Tuesday {
			t.Fatalf("slot generated on %s, want Tuesday", day.Weekday())
		}
		if s.StartMinute != 600 || s.EndMinute != 1080 {
			t.Fatalf("slot hours %d..%d, want 600..1080", s.StartMinute, s.EndMinute)
		}
	}
}

func TestGenerateMonth_SkipsDatesWithSlots(t *testing.T) {
	tpl := &fakeTemplate{days: map[int]model.ScheduleDay{
		2: {DayOfWeek: 2, IsOpen: true, StartMinute: 600, EndMinute: 1080},
	}}
	slots := &fakeSlots{existing: map[string]bool{"2026-09-08": true}}
	svc := NewService(tpl, slots)

	n, err := svc.GenerateMonth(context.Background(), 2026, time.September)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n != 4 {
		t.Fatalf("want 4 slots with one date pre-filled, got %d", n)
	}
	for _, s := range slots.inserted {
		if s.Date == "2026-09-08" {
			t.Fatal("pre-filled date must be skipped")
		}
	}
}

func TestGenerateMonth_EmptyTemplate(t *testing.T) {
	svc := NewService(&fakeTemplate{}, &fakeSlots{})
	n, err := svc.GenerateMonth(context.Background(), 2026, time.September)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n != 0 {
		t.Fatalf("closed template must generate nothing, got %d", n)
	}
}
