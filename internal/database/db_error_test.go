package database

import (
	"context"
	"io"
	"testing"
	"time"

	"carshare/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()

	t.Run("CreateBooking_Error", func(t *testing.T) {
		assert.Error(t, db.CreateBooking(ctx, &models.Booking{}))
	})

	t.Run("GetBooking_Error", func(t *testing.T) {
		_, err := db.GetBooking(ctx, "x")
		assert.Error(t, err)
	})

	t.Run("ListActiveCarBookings_Error", func(t *testing.T) {
		_, err := db.ListActiveCarBookings(ctx, "car", "")
		assert.Error(t, err)
	})

	t.Run("TransitionBooking_Error", func(t *testing.T) {
		_, err := db.TransitionBooking(ctx, models.StatusTransition{
			BookingID: "x", From: []models.BookingStatus{models.StatusPending}, To: models.StatusUpcoming,
		})
		assert.Error(t, err)
	})

	t.Run("ListBookingsToStart_Error", func(t *testing.T) {
		_, err := db.ListBookingsToStart(ctx, time.Now())
		assert.Error(t, err)
	})

	t.Run("UpsertUsers_Error", func(t *testing.T) {
		assert.Error(t, db.UpsertUsers(ctx, []models.User{{ID: "u"}}))
	})

	t.Run("HasReview_Error", func(t *testing.T) {
		_, err := db.HasReview(ctx, "x")
		assert.Error(t, err)
	})
}

func TestSchemaConstraints(t *testing.T) {
	db := newTestDB(t)
	seedFixtures(t, db)
	ctx := context.Background()

	t.Run("UnknownCar", func(t *testing.T) {
		err := db.CreateBooking(ctx, &models.Booking{
			CustomerID: "cust-1", CarID: "ghost", Status: models.StatusPending,
			StartDate: time.Now(), EndDate: time.Now(),
		})
		assert.Error(t, err)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		err := db.UpsertUsers(ctx, []models.User{{ID: "admin-1", Name: "Root", Role: "admin"}})
		assert.Error(t, err)
	})

	t.Run("RatingOutOfRange", func(t *testing.T) {
		b := insertBooking(t, db, "cust-1", "car-1", "2024-06-01", "2024-06-03", models.StatusCompleted)
		err := db.CreateReview(ctx, &models.Review{BookingID: b.ID, CustomerID: "cust-1", CarID: "car-1", Rating: 9})
		assert.Error(t, err)
	})

	t.Run("MemoryDatabase", func(t *testing.T) {
		logger := zerolog.New(io.Discard)
		mem, err := NewDB(":memory:", &logger)
		require.NoError(t, err)
		defer mem.Close()
		seedFixtures(t, mem)

		car, err := mem.GetCar(ctx, "car-1")
		require.NoError(t, err)
		assert.Equal(t, "Skoda", car.Make)
	})
}
