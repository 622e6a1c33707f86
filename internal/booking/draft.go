package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/myasnails/salonbook/internal/model"
	"github.com/myasnails/salonbook/internal/timeslot"
)

// Draft is a validated booking request. The service attributes are opaque
// strings carried through to the record and the payment metadata; only the
// identity and scheduling fields are validated here.
type Draft struct {
	// ID doubles as the idempotency key: clients that retry a submit with the
	// same ID converge on one booking. Left empty, the service assigns one.
	ID string

	Name      string
	Phone     string
	Instagram string

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
}

func (d *Draft) Validate() error {
	if err := d.validateFields(); err != nil {
		return err
	}
	// DateLayout is fixed-width, so string order is date order.
	if d.Date < time.Now().Format(model.DateLayout) {
		return fmt.Errorf("date %s is in the past", d.Date)
	}
	return nil
}

// validateFields checks everything except date freshness. The reconcile
// fallback uses it directly: a paid session must still rebuild its booking
// even when the appointment date passed before the webhook got through.
func (d *Draft) validateFields() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(d.Phone) == "" && strings.TrimSpace(d.Instagram) == "" {
		return fmt.Errorf("phone or instagram is required")
	}
	if _, err := time.Parse(model.DateLayout, d.Date); err != nil {
		return fmt.Errorf("invalid date %q", d.Date)
	}
	if d.DurationHours < 1 {
		return fmt.Errorf("duration must be at least one hour")
	}
	if _, err := timeslot.New(d.StartMinute, d.StartMinute+d.DurationHours*60); err != nil {
		return fmt.Errorf("invalid time window: %w", err)
	}
	return nil
}

// Metadata flattens the draft for the payment provider's session metadata so a
// webhook can reconstruct the booking even when the pending row never landed.
func (d *Draft) Metadata() map[string]string {
	return map[string]string{
		"booking_id":    d.ID,
		"name":          d.Name,
		"phone":         d.Phone,
		"instagram":     d.Instagram,
		"service":       d.Service,
		"art_level":     d.ArtLevel,
		"length":        d.Length,
		"soakoff":       d.SoakOff,
		"pedicure":      d.Pedicure,
		"pedicure_type": d.PedicureType,
		"booking_nails": d.BookingNails,
		"notes":         d.Notes,
		"returning":     d.Returning,
		"referral":      d.Referral,
		"date":          d.Date,
		"start_time":    timeslot.Clock(d.StartMinute),
		"duration":      strconv.Itoa(d.DurationHours),
	}
}

// DraftFromMetadata is the inverse of Metadata, used on the reconcile fallback
// path when only the payment session's metadata survives.
func DraftFromMetadata(md map[string]string) (Draft, error) {
	startMinute, err := timeslot.ParseClock(md["start_time"])
	if err != nil {
		return Draft{}, fmt.Errorf("session metadata: %w", err)
	}
	duration, err := strconv.Atoi(md["duration"])
	if err != nil || duration < 1 {
		// Historical sessions defaulted to two hours.
		duration = 2
	}
	d := Draft{
		ID:            md["booking_id"],
		Name:          md["name"],
		Phone:         md["phone"],
		Instagram:     md["instagram"],
		Service:       md["service"],
		ArtLevel:      md["art_level"],
		Length:        md["length"],
		SoakOff:       md["soakoff"],
		Pedicure:      md["pedicure"],
		PedicureType:  md["pedicure_type"],
		BookingNails:  md["booking_nails"],
		Notes:         md["notes"],
		Returning:     md["returning"],
		Referral:      md["referral"],
		Date:          md["date"],
		StartMinute:   startMinute,
		DurationHours: duration,
	}
	if err := d.validateFields(); err != nil {
		return Draft{}, fmt.Errorf("session metadata: %w", err)
	}
	return d, nil
}

func (d *Draft) booking() model.Booking {
	return model.Booking{
		ID:            d.ID,
		Name:          strings.TrimSpace(d.Name),
		Phone:         strings.TrimSpace(d.Phone),
		Instagram:     strings.TrimSpace(d.Instagram),
		Service:       d.Service,
		ArtLevel:      d.ArtLevel,
		Length:        d.Length,
		SoakOff:       d.SoakOff,
		Pedicure:      d.Pedicure,
		PedicureType:  d.PedicureType,
		BookingNails:  d.BookingNails,
		Notes:         d.Notes,
		Returning:     d.Returning,
		Referral:      d.Referral,
		Date:          d.Date,
		StartMinute:   d.StartMinute,
		DurationHours: d.DurationHours,
		EndMinute:     d.StartMinute + d.DurationHours*60,
	}
}
