package service

import (
	"context"
	"fmt"
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"
)

// Overlaps reports whether two date ranges collide under the strict rule
// s1 < e2 && s2 < e1. A range ending on D does not collide with one starting on D.
func Overlaps(a, b models.DateRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

type AvailabilityChecker struct {
	bookings domain.BookingRepository
}

func NewAvailabilityChecker(bookings domain.BookingRepository) *AvailabilityChecker {
	return &AvailabilityChecker{bookings: bookings}
}

// HasConflict reports whether [start, end] overlaps any non-terminal booking
// of the car other than excludeBookingID. Read failures are never reported as
// "no conflict".
func (c *AvailabilityChecker) HasConflict(ctx context.Context, carID string, start, end time.Time, excludeBookingID string) (bool, error) {
	active, err := c.bookings.ListActiveCarBookings(ctx, carID, excludeBookingID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrAvailabilityFailed, err)
	}

	requested := models.DateRange{Start: start, End: end}
	for _, b := range active {
		if b.Status.IsTerminal() || b.ID == excludeBookingID {
			continue
		}
		if Overlaps(requested, models.DateRange{Start: b.StartDate, End: b.EndDate}) {
			return true, nil
		}
	}
	return false, nil
}

// CheckListed is the second gate: unlisted cars accept no new bookings.
func CheckListed(car *models.Car) error {
	if !car.IsListed {
		return domain.ErrCarUnavailable
	}
	return nil
}
