package domain

import (
	"context"
	"time"

	"carshare/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingDetails(ctx context.Context, id string) (*models.BookingDetails, error)
	ListActiveCarBookings(ctx context.Context, carID, excludeBookingID string) ([]*models.Booking, error)
	TransitionBooking(ctx context.Context, t models.StatusTransition) (int64, error)
	ListCustomerBookings(ctx context.Context, customerID string, status models.BookingStatus) ([]*models.BookingDetails, error)
	ListOwnerBookings(ctx context.Context, ownerID string, status models.BookingStatus) ([]*models.BookingDetails, error)
	ListBookingsToStart(ctx context.Context, today time.Time) ([]*models.Booking, error)
	ListBookingsToComplete(ctx context.Context, today time.Time) ([]*models.Booking, error)
}

type CarRepository interface {
	GetCar(ctx context.Context, id string) (*models.Car, error)
	SetCarListed(ctx context.Context, id string, listed bool) error
	UpsertCars(ctx context.Context, cars []models.Car) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUsers(ctx context.Context, users []models.User) error
}

type ReviewRepository interface {
	HasReview(ctx context.Context, bookingID string) (bool, error)
	CreateReview(ctx context.Context, review *models.Review) error
	ListCarReviews(ctx context.Context, carID string) ([]models.Review, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// RateLimiter counts actions per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, caller models.Caller, req models.CreateBookingRequest) (*models.BookingDetails, error)
	ConfirmBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error)
	RejectBooking(ctx context.Context, caller models.Caller, bookingID, reason string) (*models.BookingDetails, error)
	CancelBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error)
	GetBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.BookingDetails, error)
	ListBookings(ctx context.Context, caller models.Caller, status models.BookingStatus) ([]*models.BookingDetails, error)
	CheckCarAvailability(ctx context.Context, carID string, start, end time.Time) (*models.Availability, error)
	SweepLifecycle(ctx context.Context) (*models.SweepResult, error)
}

type ReviewService interface {
	ReviewEligibility(ctx context.Context, caller models.Caller, bookingID string) (*models.ReviewEligibility, error)
	SubmitReview(ctx context.Context, caller models.Caller, req models.SubmitReviewRequest) (*models.Review, error)
	ListCarReviews(ctx context.Context, carID string) (*models.CarRating, error)
}
