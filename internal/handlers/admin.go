package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/schedule"
	"github.com/myasnails/salonbook/internal/storage"
	"github.com/myasnails/salonbook/internal/sweep"
	"github.com/myasnails/salonbook/internal/timeslot"
)

type SlotAdmin interface {
	ListSlotsInRange(ctx context.Context, fromDate, toDate string) ([]model.AvailabilitySlot, error)
	CreateSlot(ctx context.Context, s model.AvailabilitySlot) (model.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, id string) (bool, error)
}

type ScheduleService interface {
	Template(ctx context.Context) ([]model.ScheduleDay, error)
	SetDay(ctx context.Context, d model.ScheduleDay) error
	GenerateMonth(ctx context.Context, year int, month time.Month) (int, error)
}

type Sweeper interface {
	RunOnce(ctx context.Context) (sweep.Summary, error)
}

// AdminHandler is the owner dashboard API. Every route here sits behind
// RequireOwner.
type AdminHandler struct {
	bookings BookingService
	slots    SlotAdmin
	schedule ScheduleService
	sweeper  Sweeper
	logger   *slog.Logger
}

func NewAdminHandler(bookings BookingService, slots SlotAdmin, scheduleSvc ScheduleService, sweeper Sweeper, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		bookings: bookings,
		slots:    slots,
		schedule: scheduleSvc,
		sweeper:  sweeper,
		logger:   logger,
	}
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from := r.URL.Query().Get("from")
	if from == "" {
		from = time.Now().Format(model.DateLayout)
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := h.bookings.ListUpcoming(r.Context(), from, limit)
	if err != nil {
		h.logger.Error("booking list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]bookingItem, 0, len(list))
	for _, b := range list {
		items = append(items, toBookingItem(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": items})
}

type editBookingRequest struct {
	BookingID string  `json:"booking_id"`
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Service   *string `json:"service"`
	ArtLevel  *string `json:"art_level"`
	Notes     *string `json:"notes"`
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	Duration  *int    `json:"duration"`
	Paid      *bool   `json:"paid"`
}

func (h *AdminHandler) EditBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req editBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "missing booking_id")
		return
	}

	patch := booking.Patch{
		Name:          req.Name,
		Phone:         req.Phone,
		Service:       req.Service,
		ArtLevel:      req.ArtLevel,
		Notes:         req.Notes,
		Date:          req.Date,
		DurationHours: req.Duration,
		Paid:          req.Paid,
	}
	if req.StartTime != nil {
		startMinute, err := timeslot.ParseClock(*req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_time, want HH:MM")
			return
		}
		patch.StartMinute = &startMinute
	}

	updated, err := h.bookings.Edit(r.Context(), req.BookingID, patch)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(updated))
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *AdminHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "missing booking_id")
		return
	}

	cancelled, err := h.bookings.Cancel(r.Context(), req.BookingID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(cancelled))
}

type scheduleDayRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	IsOpen    bool   `json:"is_open"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type scheduleDayItem struct {
	DayOfWeek int    `json:"day_of_week"`
	IsOpen    bool   `json:"is_open"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Schedule serves the weekly template: GET lists it, POST upserts one day.
func (h *AdminHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		days, err := h.schedule.Template(r.Context())
		if err != nil {
			h.logger.Error("schedule load failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		items := make([]scheduleDayItem, 0, len(days))
		for _, d := range days {
			item := scheduleDayItem{DayOfWeek: d.DayOfWeek, IsOpen: d.IsOpen}
			if d.IsOpen {
				item.StartTime = timeslot.Clock(d.StartMinute)
				item.EndTime = timeslot.Clock(d.EndMinute)
			}
			items = append(items, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"days": items})
	case http.MethodPost:
		var req scheduleDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		day := model.ScheduleDay{DayOfWeek: req.DayOfWeek, IsOpen: req.IsOpen}
		if req.IsOpen {
			start, err := timeslot.ParseClock(req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid start_time, want HH:MM")
				return
			}
			end, err := timeslot.ParseClock(req.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid end_time, want HH:MM")
				return
			}
			day.StartMinute, day.EndMinute = start, end
		}
		if err := h.schedule.SetDay(r.Context(), day); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createSlotRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotAdminItem struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Availability manages concrete slots: GET lists a date range, POST adds a
// slot, DELETE removes one by id.
func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		if from == "" || to == "" {
			writeError(w, http.StatusBadRequest, "missing from/to")
			return
		}
		slots, err := h.slots.ListSlotsInRange(r.Context(), from, to)
		if err != nil {
			h.logger.Error("slot list failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		items := make([]slotAdminItem, 0, len(slots))
		for _, s := range slots {
			items = append(items, slotAdminItem{
				ID:        s.ID,
				Date:      s.Date,
				StartTime: timeslot.Clock(s.StartMinute),
				EndTime:   timeslot.Clock(s.EndMinute),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": items})
	case http.MethodPost:
		var req createSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		start, err := timeslot.ParseClock(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_time, want HH:MM")
			return
		}
		end, err := timeslot.ParseClock(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_time, want HH:MM")
			return
		}
		if _, err := timeslot.New(start, end); err != nil {
			writeError(w, http.StatusBadRequest, "invalid time window")
			return
		}
		created, err := h.slots.CreateSlot(r.Context(), model.AvailabilitySlot{
			ID:          uuid.NewString(),
			Date:        req.Date,
			StartMinute: start,
			EndMinute:   end,
		})
		if err != nil {
			if errors.Is(err, storage.ErrSlotExists) {
				writeError(w, http.StatusConflict, "slot already exists")
				return
			}
			h.logger.Error("slot create failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, slotAdminItem{
			ID:        created.ID,
			Date:      created.Date,
			StartTime: timeslot.Clock(created.StartMinute),
			EndTime:   timeslot.Clock(created.EndMinute),
		})
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing id")
			return
		}
		deleted, err := h.slots.DeleteSlot(r.Context(), id)
		if err != nil {
			h.logger.Error("slot delete failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "slot not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type generateMonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (h *AdminHandler) GenerateMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req generateMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1..12")
		return
	}

	created, err := h.schedule.GenerateMonth(r.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	summary, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", "err", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders_queued": summary.RemindersQueued,
		"purged":           summary.Purged,
	})
}

var _ ScheduleService = (*schedule.Service)(nil)
