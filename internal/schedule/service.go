// Package schedule manages the weekly opening-hours template and stamps it
// out into concrete availability slots, one month at a time.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/timeslot"
)

type TemplateStore interface {
	ListTemplate(ctx context.Context) ([]model.ScheduleDay, error)
	UpsertDay(ctx context.Context, d model.ScheduleDay) error
}

type SlotWriter interface {
	DatesWithSlots(ctx context.Context, fromDate, toDate string) (map[string]bool, error)
	InsertSlots(ctx context.Context, slots []model.AvailabilitySlot) (int, error)
}

type Service struct {
	template TemplateStore
	slots    SlotWriter
}

func NewService(template TemplateStore, slots SlotWriter) *Service {
	return &Service{template: template, slots: slots}
}

func (s *Service) Template(ctx context.Context) ([]model.ScheduleDay, error) {
	return s.template.ListTemplate(ctx)
}

func (s *Service) SetDay(ctx context.Context, d model.ScheduleDay) error {
	if d.DayOfWeek < 0 || d.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0..6, got %d", d.DayOfWeek)
	}
	if d.IsOpen {
		if _, err := timeslot.New(d.StartMinute, d.EndMinute); err != nil {
			return fmt.Errorf("invalid opening hours: %w", err)
		}
	}
	return s.template.UpsertDay(ctx, d)
}

// GenerateMonth creates one availability slot per open weekday for every date
// in the month that has none yet. Dates that already carry a slot are left
// alone, so re-running after hand edits never clobbers them. Returns the
// number of slots created.
func (s *Service) GenerateMonth(ctx context.Context, year int, month time.Month) (int, error) {
	if year < 2000 || year > 2200 {
		return 0, fmt.Errorf("implausible year %d", year)
	}

	template, err := s.template.ListTemplate(ctx)
	if err != nil {
		return 0, err
	}
	byWeekday := make(map[int]model.ScheduleDay, len(template))
	for _, d := range template {
		byWeekday[d.DayOfWeek] = d
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	existing, err := s.slots.DatesWithSlots(ctx,
		first.Format(model.DateLayout), last.Format(model.DateLayout))
	if err != nil {
		return 0, err
	}

	var slots []model.AvailabilitySlot
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		date := day.Format(model.DateLayout)
		if existing[date] {
			continue
		}
		tpl, ok := byWeekday[int(day.Weekday())]
		if !ok || !tpl.IsOpen {
			continue
		}
		slots = append(slots, model.AvailabilitySlot{
			ID:          uuid.NewString(),
			Date:        date,
			StartMinute: tpl.StartMinute,
			EndMinute:   tpl.EndMinute,
		})
	}
	if len(slots) == 0 {
		return 0, nil
	}
	return s.slots.InsertSlots(ctx, slots)
}
