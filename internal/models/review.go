package models

import "time"

type Review struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	CustomerID string    `json:"customer_id"`
	CarID      string    `json:"car_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewEligibility explains whether a booking can receive a review right now.
type ReviewEligibility struct {
	BookingID string `json:"booking_id"`
	Eligible  bool   `json:"eligible"`
	Reason    string `json:"reason,omitempty"`
}

// CarRating aggregates the reviews of one car.
type CarRating struct {
	CarID   string   `json:"car_id"`
	Count   int      `json:"count"`
	Average float64  `json:"average"`
	Reviews []Review `json:"reviews"`
}
