package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carshare/internal/domain"
	"carshare/internal/events"
	"carshare/internal/metrics"
	"carshare/internal/models"

	"github.com/rs/zerolog"
)

type BookingServiceConfig struct {
	MaxBookingDays int
	CancelWindow   time.Duration
}

type BookingService struct {
	bookings       domain.BookingRepository
	cars           domain.CarRepository
	checker        *AvailabilityChecker
	eventBus       domain.EventPublisher
	maxBookingDays int
	cancelWindow   time.Duration
	logger         *zerolog.Logger
	now            func() time.Time
}

var _ domain.BookingService = (*BookingService)(nil)

func NewBookingService(
	bookings domain.BookingRepository,
	cars domain.CarRepository,
	eventBus domain.EventPublisher,
	cfg BookingServiceConfig,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.MaxBookingDays <= 0 {
		cfg.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = models.DefaultCancelWindow
	}
	return &BookingService{
		bookings:       bookings,
		cars:           cars,
		checker:        NewAvailabilityChecker(bookings),
		eventBus:       eventBus,
		maxBookingDays: cfg.MaxBookingDays,
		cancelWindow:   cfg.CancelWindow,
		logger:         logger,
		now:            time.Now,
	}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

func (s *BookingService) CreateBooking(ctx context.Context, caller models.Caller, req models.CreateBookingRequest) (*models.BookingDetails, error) {
	details, err := s.createBooking(ctx, caller, req)
	metrics.IncTransition(string(ActionCreate), outcomeOf(err))
	return details, err
}

func (s *BookingService) createBooking(ctx context.Context, caller models.Caller, req models.CreateBookingRequest) (*models.BookingDetails, error) {
	if err := authorize(ActionCreate, caller); err != nil {
		return nil, err
	}

	start := models.TruncateDate(req.StartDate)
	end := models.TruncateDate(req.EndDate)
	today := models.TruncateDate(s.now())
	if _, err := ValidateBookingDates(start, end, today, s.maxBookingDays); err != nil {
		return nil, err
	}

	car, err := s.cars.GetCar(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	if car.OwnerID == caller.UserID {
		return nil, domain.ErrOwnCar
	}
	if err := CheckListed(car); err != nil {
		return nil, err
	}

	conflict, err := s.checker.HasConflict(ctx, car.ID, start, end, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, domain.ErrDatesOverlap
	}

	total, err := CalculateTotalPrice(start, end, car.PricePerDayCents)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		CustomerID:      caller.UserID,
		CarID:           car.ID,
		StartDate:       start,
		EndDate:         end,
		TotalPriceCents: total,
		Status:          transitionRules[ActionCreate].To,
	}
	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	details, err := s.bookings.GetBookingDetails(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("car_id", car.ID).
		Str("customer_id", caller.UserID).
		Int64("total_price_cents", total).
		Msg("Booking created")
	s.publishEvent(events.EventBookingCreated, details, string(ActorCustomer), caller.UserID)
	return details, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error) {
	return s.ownerTransition(ctx, ActionConfirm, caller, bookingID, nil)
}

func (s *BookingService) RejectBooking(ctx context.Context, caller models.Caller, bookingID, reason string) (*models.BookingDetails, error) {
	reason = strings.TrimSpace(reason)
	if err := authorize(ActionReject, caller); err != nil {
		metrics.IncTransition(string(ActionReject), outcomeOf(err))
		return nil, err
	}
	if reason == "" {
		metrics.IncTransition(string(ActionReject), outcomeOf(domain.ErrRejectionReason))
		return nil, domain.ErrRejectionReason
	}
	return s.ownerTransition(ctx, ActionReject, caller, bookingID, &reason)
}

func (s *BookingService) ownerTransition(ctx context.Context, action Action, caller models.Caller, bookingID string, reason *string) (*models.BookingDetails, error) {
	details, err := s.applyOwnerTransition(ctx, action, caller, bookingID, reason)
	metrics.IncTransition(string(action), outcomeOf(err))
	return details, err
}

func (s *BookingService) applyOwnerTransition(ctx context.Context, action Action, caller models.Caller, bookingID string, reason *string) (*models.BookingDetails, error) {
	if err := authorize(action, caller); err != nil {
		return nil, err
	}
	rule := transitionRules[action]

	details, err := s.applyTransition(ctx, action, models.StatusTransition{
		BookingID:       bookingID,
		From:            rule.From,
		To:              rule.To,
		OwnerID:         caller.UserID,
		RejectionReason: reason,
	}, caller)
	if err != nil {
		return nil, err
	}

	eventType := events.EventBookingConfirmed
	if action == ActionReject {
		eventType = events.EventBookingRejected
	}
	s.publishEvent(eventType, details, string(ActorOwner), caller.UserID)
	return details, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error) {
	details, err := s.cancelBooking(ctx, caller, bookingID)
	metrics.IncTransition(string(ActionCancel), outcomeOf(err))
	return details, err
}

func (s *BookingService) cancelBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error) {
	if err := authorize(ActionCancel, caller); err != nil {
		return nil, err
	}

	// start_date never changes, so reading it ahead of the update is safe.
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != caller.UserID {
		return nil, domain.ErrBookingNotFound
	}

	now := s.now()
	from := cancelSources(booking.StartDate, now, s.cancelWindow)

	details, err := s.applyTransition(ctx, ActionCancel, models.StatusTransition{
		BookingID:  bookingID,
		From:       from,
		To:         transitionRules[ActionCancel].To,
		CustomerID: caller.UserID,
	}, caller)
	if err != nil {
		var stateErr *domain.StateConflictError
		if errors.As(err, &stateErr) && models.BookingStatus(stateErr.Current) == models.StatusUpcoming &&
			!cancelWindowOpen(booking.StartDate, now, s.cancelWindow) {
			return nil, fmt.Errorf("%w: less than %s remain before the start date", domain.ErrNotCancelable, s.cancelWindow)
		}
		return nil, err
	}

	s.publishEvent(events.EventBookingCancelled, details, string(ActorCustomer), caller.UserID)
	return details, nil
}

// applyTransition runs one conditional update. When nothing changed it
// re-reads the booking to tell a missing or foreign booking from a lost race.
// It never retries.
func (s *BookingService) applyTransition(ctx context.Context, action Action, t models.StatusTransition, caller models.Caller) (*models.BookingDetails, error) {
	var affected int64
	if len(t.From) > 0 {
		var err error
		affected, err = s.bookings.TransitionBooking(ctx, t)
		if err != nil {
			return nil, err
		}
	}

	if affected == 0 {
		current, err := s.bookings.GetBookingDetails(ctx, t.BookingID)
		if err != nil {
			return nil, err
		}
		if !visibleTo(current, caller) {
			return nil, domain.ErrBookingNotFound
		}
		s.logger.Debug().
			Str("booking_id", t.BookingID).
			Str("action", string(action)).
			Str("current", current.Status.String()).
			Msg("Booking transition lost")
		return nil, &domain.StateConflictError{
			BookingID: t.BookingID,
			Action:    string(action),
			Current:   current.Status.String(),
		}
	}

	details, err := s.bookings.GetBookingDetails(ctx, t.BookingID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("booking_id", t.BookingID).
		Str("action", string(action)).
		Str("status", details.Status.String()).
		Msg("Booking transitioned")
	return details, nil
}

func (s *BookingService) GetBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error) {
	details, err := s.bookings.GetBookingDetails(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(details, caller) {
		return nil, domain.ErrBookingNotFound
	}
	return details, nil
}

func (s *BookingService) ListBookings(ctx context.Context, caller models.Caller, status models.BookingStatus) ([]*models.BookingDetails, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	switch {
	case caller.IsCustomer():
		return s.bookings.ListCustomerBookings(ctx, caller.UserID, status)
	case caller.IsOwner():
		return s.bookings.ListOwnerBookings(ctx, caller.UserID, status)
	default:
		return nil, domain.ErrWrongRole
	}
}

func (s *BookingService) CheckCarAvailability(ctx context.Context, carID string, start, end time.Time) (*models.Availability, error) {
	start, end = models.TruncateDate(start), models.TruncateDate(end)
	if !end.After(start) {
		return nil, domain.ErrEndNotAfterStart
	}

	car, err := s.cars.GetCar(ctx, carID)
	if err != nil {
		return nil, err
	}
	conflict, err := s.checker.HasConflict(ctx, car.ID, start, end, "")
	if err != nil {
		return nil, err
	}

	return &models.Availability{
		CarID:     car.ID,
		StartDate: start,
		EndDate:   end,
		Listed:    car.IsListed,
		Conflict:  conflict,
		Available: car.IsListed && !conflict,
	}, nil
}

// SweepLifecycle moves upcoming bookings whose start date has come to ongoing,
// then ongoing bookings whose end date has passed to completed.
func (s *BookingService) SweepLifecycle(ctx context.Context) (*models.SweepResult, error) {
	started := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(started).Seconds()) }()

	today := models.TruncateDate(s.now())
	result := &models.SweepResult{}

	toStart, err := s.bookings.ListBookingsToStart(ctx, today)
	if err != nil {
		return result, err
	}
	for _, b := range toStart {
		moved, err := s.systemTransition(ctx, ActionStart, b.ID)
		if err != nil {
			return result, err
		}
		if moved {
			result.Started++
		} else {
			result.Skipped++
		}
	}

	toComplete, err := s.bookings.ListBookingsToComplete(ctx, today)
	if err != nil {
		return result, err
	}
	for _, b := range toComplete {
		moved, err := s.systemTransition(ctx, ActionComplete, b.ID)
		if err != nil {
			return result, err
		}
		if moved {
			result.Completed++
		} else {
			result.Skipped++
		}
	}

	return result, nil
}

func (s *BookingService) systemTransition(ctx context.Context, action Action, bookingID string) (bool, error) {
	rule := transitionRules[action]
	affected, err := s.bookings.TransitionBooking(ctx, models.StatusTransition{
		BookingID: bookingID,
		From:      rule.From,
		To:        rule.To,
	})
	if err != nil {
		metrics.IncTransition(string(action), outcomeOf(err))
		return false, err
	}
	if affected == 0 {
		metrics.IncTransition(string(action), "conflict")
		return false, nil
	}
	metrics.IncTransition(string(action), "ok")

	details, err := s.bookings.GetBookingDetails(ctx, bookingID)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", bookingID).Msg("Failed to load booking for event")
		return true, nil
	}
	eventType := events.EventBookingStarted
	if action == ActionComplete {
		eventType = events.EventBookingCompleted
	}
	s.publishEvent(eventType, details, string(ActorSystem), "")
	return true, nil
}

// visibleTo hides bookings the caller neither made nor owns the car of.
func visibleTo(d *models.BookingDetails, caller models.Caller) bool {
	switch {
	case caller.IsCustomer():
		return d.CustomerID == caller.UserID
	case caller.IsOwner():
		return d.Car.OwnerID == caller.UserID
	default:
		return false
	}
}

func (s *BookingService) publishEvent(eventType string, d *models.BookingDetails, changedBy, changedByID string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:       d.ID,
		CustomerID:      d.CustomerID,
		CarID:           d.CarID,
		OwnerID:         d.Car.OwnerID,
		CarName:         strings.TrimSpace(d.Car.Make + " " + d.Car.Model),
		Status:          d.Status.String(),
		StartDate:       d.StartDate,
		EndDate:         d.EndDate,
		TotalPriceCents: d.TotalPriceCents,
		ChangedBy:       changedBy,
		ChangedByID:     changedByID,
	}
	if d.RejectionReason != nil {
		payload.RejectionReason = *d.RejectionReason
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", d.ID).Msg("publish event error")
	}
}

// outcomeOf labels an error for metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
