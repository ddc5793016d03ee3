package database

import (
	"context"
	"fmt"

	"carshare/internal/domain"
	"carshare/internal/models"

	"github.com/google/uuid"
)

func (db *DB) HasReview(ctx context.Context, bookingID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reviews WHERE booking_id = ?)`, bookingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return exists, nil
}

// CreateReview stores a review. A second review for the same booking fails
// with domain.ErrReviewExists.
func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := db.now().UTC()

	query := `INSERT INTO reviews (id, booking_id, customer_id, car_id, rating, comment, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		review.ID, review.BookingID, review.CustomerID, review.CarID, review.Rating, review.Comment, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrReviewExists
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	review.CreatedAt = now
	return nil
}

func (db *DB) ListCarReviews(ctx context.Context, carID string) ([]models.Review, error) {
	query := `SELECT id, booking_id, customer_id, car_id, rating, comment, created_at
			  FROM reviews WHERE car_id = ? ORDER BY created_at DESC, id`
	rows, err := db.QueryContext(ctx, query, carID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.BookingID, &r.CustomerID, &r.CarID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}
