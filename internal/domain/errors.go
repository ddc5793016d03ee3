package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the booking core wraps exactly one of
// these so the request boundary can map it with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var (
	ErrBookingNotFound = fmt.Errorf("%w: booking not found", ErrNotFound)
	ErrCarNotFound     = fmt.Errorf("%w: car not found", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)

	ErrPastStartDate      = fmt.Errorf("%w: start_date cannot be in the past", ErrValidation)
	ErrEndNotAfterStart   = fmt.Errorf("%w: end_date must be after start_date", ErrValidation)
	ErrBookingTooLong     = fmt.Errorf("%w: booking span exceeds the maximum number of days", ErrValidation)
	ErrRejectionReason    = fmt.Errorf("%w: rejection_reason is required", ErrValidation)
	ErrInvalidRating      = fmt.Errorf("%w: rating must be an integer between 1 and 5", ErrValidation)
	ErrInvalidComment     = fmt.Errorf("%w: comment must be between 10 and 500 characters", ErrValidation)
	ErrInvalidPrice       = fmt.Errorf("%w: price per day must not be negative", ErrValidation)
	ErrOwnCar             = fmt.Errorf("%w: owners cannot book their own car", ErrForbidden)
	ErrWrongRole          = fmt.Errorf("%w: role is not allowed to perform this action", ErrForbidden)
	ErrCarUnavailable     = fmt.Errorf("%w: car is not available for booking", ErrConflict)
	ErrDatesOverlap       = fmt.Errorf("%w: car is already booked for the requested dates", ErrConflict)
	ErrNotCancelable      = fmt.Errorf("%w: booking is not cancelable", ErrConflict)
	ErrReviewExists       = fmt.Errorf("%w: booking already has a review", ErrConflict)
	ErrNotReviewable      = fmt.Errorf("%w: only completed bookings can be reviewed", ErrConflict)
	ErrAvailabilityFailed = errors.New("availability check failed")
)

// StateConflictError reports a transition lost to another request or attempted
// from a status that does not permit it.
type StateConflictError struct {
	BookingID string
	Action    string
	Current   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s booking %s: booking is %s", e.Action, e.BookingID, e.Current)
}

func (e *StateConflictError) Unwrap() error { return ErrConflict }
