package models

import "time"

type Booking struct {
	ID              string        `json:"id"`
	CustomerID      string        `json:"customer_id"`
	CarID           string        `json:"car_id"`
	StartDate       time.Time     `json:"start_date"`
	EndDate         time.Time     `json:"end_date"`
	TotalPriceCents int64         `json:"total_price_cents"`
	Status          BookingStatus `json:"status"`
	RejectionReason *string       `json:"rejection_reason"` // set only when status is rejected
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// CustomerSummary is the customer projection joined onto a booking.
type CustomerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CarSummary is the car projection joined onto a booking.
type CarSummary struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Make             string `json:"make"`
	Model            string `json:"model"`
	Year             int    `json:"year"`
	PricePerDayCents int64  `json:"price_per_day_cents"`
	IsListed         bool   `json:"is_listed"`
}

// BookingDetails is a booking together with its customer and car projections.
type BookingDetails struct {
	Booking
	Customer CustomerSummary `json:"customer"`
	Car      CarSummary      `json:"car"`
}

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Availability answers whether a car can take a new booking for a range.
type Availability struct {
	CarID     string    `json:"car_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Listed    bool      `json:"listed"`
	Conflict  bool      `json:"conflict"`
	Available bool      `json:"available"`
}
