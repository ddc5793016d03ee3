package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"carshare/internal/domain"
	"carshare/internal/events"
	"carshare/internal/metrics"
	"carshare/internal/models"

	"github.com/rs/zerolog"
)

type ReviewService struct {
	bookings domain.BookingRepository
	cars     domain.CarRepository
	reviews  domain.ReviewRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

var _ domain.ReviewService = (*ReviewService)(nil)

func NewReviewService(
	bookings domain.BookingRepository,
	cars domain.CarRepository,
	reviews domain.ReviewRepository,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		bookings: bookings,
		cars:     cars,
		reviews:  reviews,
		eventBus: eventBus,
		logger:   logger,
	}
}

// IsReviewable is the eligibility rule: only completed bookings take a review.
func IsReviewable(status models.BookingStatus) bool {
	return status == models.StatusCompleted
}

// ValidateReview checks rating and comment and returns the trimmed comment.
func ValidateReview(rating int, comment string) (string, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return "", domain.ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", nil
	}
	if n := utf8.RuneCountInString(comment); n < models.ReviewCommentMinLength || n > models.ReviewCommentMaxLength {
		return "", domain.ErrInvalidComment
	}
	return comment, nil
}

func (s *ReviewService) ReviewEligibility(ctx context.Context, caller models.Caller, bookingID string) (*models.ReviewEligibility, error) {
	booking, err := s.ownBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}

	out := &models.ReviewEligibility{BookingID: booking.ID}
	if !IsReviewable(booking.Status) {
		out.Reason = fmt.Sprintf("booking is %s", booking.Status)
		return out, nil
	}

	exists, err := s.reviews.HasReview(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		out.Reason = "review already submitted"
		return out, nil
	}

	out.Eligible = true
	return out, nil
}

func (s *ReviewService) SubmitReview(ctx context.Context, caller models.Caller, req models.SubmitReviewRequest) (*models.Review, error) {
	review, err := s.submitReview(ctx, caller, req)
	metrics.IncReview(outcomeOf(err))
	return review, err
}

func (s *ReviewService) submitReview(ctx context.Context, caller models.Caller, req models.SubmitReviewRequest) (*models.Review, error) {
	if !caller.IsCustomer() {
		return nil, domain.ErrWrongRole
	}
	comment, err := ValidateReview(req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}

	booking, err := s.ownBooking(ctx, caller, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !IsReviewable(booking.Status) {
		return nil, fmt.Errorf("%w: booking is %s", domain.ErrNotReviewable, booking.Status)
	}

	exists, err := s.reviews.HasReview(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrReviewExists
	}

	review := &models.Review{
		BookingID:  booking.ID,
		CustomerID: caller.UserID,
		CarID:      booking.CarID,
		Rating:     req.Rating,
		Comment:    comment,
	}
	// The unique booking_id constraint decides between concurrent submissions.
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("review_id", review.ID).Int("rating", review.Rating).Msg("Review submitted")
	if s.eventBus != nil {
		payload := events.ReviewEventPayload{
			ReviewID:   review.ID,
			BookingID:  review.BookingID,
			CarID:      review.CarID,
			CustomerID: review.CustomerID,
			Rating:     review.Rating,
		}
		if err := s.eventBus.PublishJSON(events.EventReviewSubmitted, payload); err != nil {
			s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("publish event error")
		}
	}
	return review, nil
}

func (s *ReviewService) ListCarReviews(ctx context.Context, carID string) (*models.CarRating, error) {
	if _, err := s.cars.GetCar(ctx, carID); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListCarReviews(ctx, carID)
	if err != nil {
		return nil, err
	}

	rating := &models.CarRating{CarID: carID, Count: len(reviews), Reviews: reviews}
	if rating.Reviews == nil {
		rating.Reviews = []models.Review{}
	}
	if len(reviews) > 0 {
		sum := 0
		for _, r := range reviews {
			sum += r.Rating
		}
		rating.Average = math.Round(float64(sum)/float64(len(reviews))*100) / 100
	}
	return rating, nil
}

// ownBooking loads a booking of the calling customer; anything else is not found.
func (s *ReviewService) ownBooking(ctx context.Context, caller models.Caller, bookingID string) (*models.Booking, error) {
	if !caller.IsCustomer() {
		return nil, domain.ErrWrongRole
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	if booking.CustomerID != caller.UserID {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}
