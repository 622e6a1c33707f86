package booking

import "errors"

var (
	// ErrSlotConflict means the requested interval is no longer free. The
	// caller should re-fetch availability and pick another time.
	ErrSlotConflict = errors.New("time slot already booked")

	// ErrNotFound is returned for lookups on unknown booking or session ids.
	ErrNotFound = errors.New("booking not found")

	// ErrPaymentIncomplete means the checkout session exists but the provider
	// does not report it paid yet.
	ErrPaymentIncomplete = errors.New("payment not completed")

	// ErrAlreadyConfirmed guards checkout creation for finished bookings.
	ErrAlreadyConfirmed = errors.New("booking already confirmed")
)
