package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrSlotConflict = errors.New("slot already reserved for this space and date")

	ErrCapacityExceeded = errors.New("attendee count exceeds space capacity")

	ErrPastDate = errors.New("reservation date is in the past")
)
