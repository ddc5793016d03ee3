package service

import (
	"math"
	"time"

	"carshare/internal/domain"
)

// BookingDays is the priced length of a booking: the calendar-day difference
// between start and end, rounded up. It is one less than the number of days
// the booking occupies for overlap purposes.
func BookingDays(start, end time.Time) int {
	hours := math.Abs(end.Sub(start).Hours())
	return int(math.Ceil(hours / 24))
}

func CalculateTotalPrice(start, end time.Time, pricePerDayCents int64) (int64, error) {
	if pricePerDayCents < 0 {
		return 0, domain.ErrInvalidPrice
	}
	return int64(BookingDays(start, end)) * pricePerDayCents, nil
}

// ValidateBookingDates applies the creation rules in order: start not before
// today, end strictly after start, and 1..maxDays priced days.
func ValidateBookingDates(start, end, today time.Time, maxDays int) (int, error) {
	if start.Before(today) {
		return 0, domain.ErrPastStartDate
	}
	if !end.After(start) {
		return 0, domain.ErrEndNotAfterStart
	}
	days := BookingDays(start, end)
	if days < 1 || days > maxDays {
		return 0, domain.ErrBookingTooLong
	}
	return days, nil
}
