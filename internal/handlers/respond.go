// Package handlers is the HTTP surface: the public booking form endpoints,
// the Stripe webhook, and the owner dashboard.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/myasnails/salonbook/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"failed to build response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBookingError maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message; the detail goes to the log,
// not the client.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "time slot already booked")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, booking.ErrPaymentIncomplete):
		writeError(w, http.StatusPaymentRequired, "payment not completed")
	case errors.Is(err, booking.ErrAlreadyConfirmed):
		writeError(w, http.StatusConflict, "booking already confirmed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
