package models

import "time"

type CreateBookingRequest struct {
	CarID     string
	StartDate time.Time
	EndDate   time.Time
}

type SubmitReviewRequest struct {
	BookingID string
	Rating    int
	Comment   string
}

// StatusTransition is one conditional status update: it applies only while the
// booking is in one of From and the optional ownership predicates hold.
type StatusTransition struct {
	BookingID       string
	From            []BookingStatus
	To              BookingStatus
	CustomerID      string  // when set, booking.customer_id must match
	OwnerID         string  // when set, the booked car must belong to this owner
	RejectionReason *string // stored only for rejected; cleared otherwise
}

// SweepResult counts bookings moved by one lifecycle sweep.
type SweepResult struct {
	Started   int `json:"started"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
}
