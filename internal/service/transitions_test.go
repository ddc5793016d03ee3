package service

import (
	"testing"
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]models.BookingStatus]bool{
		{models.StatusPending, models.StatusUpcoming}:   true,
		{models.StatusPending, models.StatusRejected}:   true,
		{models.StatusPending, models.StatusCancelled}:  true,
		{models.StatusUpcoming, models.StatusCancelled}: true,
		{models.StatusUpcoming, models.StatusOngoing}:   true,
		{models.StatusOngoing, models.StatusCompleted}:  true,
	}
	all := []models.BookingStatus{
		models.StatusPending, models.StatusUpcoming, models.StatusOngoing,
		models.StatusCompleted, models.StatusCancelled, models.StatusRejected,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]models.BookingStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoOutboundRule(t *testing.T) {
	for action, rule := range transitionRules {
		for _, from := range rule.From {
			assert.False(t, from.IsTerminal(), "action %s starts from terminal %s", action, from)
		}
	}
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, authorize(ActionCreate, customer1))
	assert.ErrorIs(t, authorize(ActionCreate, owner1), domain.ErrWrongRole)
	assert.NoError(t, authorize(ActionConfirm, owner1))
	assert.ErrorIs(t, authorize(ActionConfirm, customer1), domain.ErrWrongRole)
	assert.NoError(t, authorize(ActionReject, owner1))
	assert.NoError(t, authorize(ActionCancel, customer1))
	assert.ErrorIs(t, authorize(ActionCancel, owner1), domain.ErrForbidden)
	assert.ErrorIs(t, authorize(ActionStart, owner1), domain.ErrWrongRole)
	assert.ErrorIs(t, authorize(ActionComplete, models.Caller{Role: "system"}), domain.ErrWrongRole)
}

func TestCancelSources(t *testing.T) {
	start := mustDate("2024-06-10")
	window := 24 * time.Hour

	assert.Equal(t,
		[]models.BookingStatus{models.StatusPending, models.StatusUpcoming},
		cancelSources(start, start.Add(-25*time.Hour), window))
	assert.Equal(t,
		[]models.BookingStatus{models.StatusPending},
		cancelSources(start, start.Add(-23*time.Hour), window))
	assert.Equal(t,
		[]models.BookingStatus{models.StatusPending},
		cancelSources(start, start.Add(-24*time.Hour), window), "exactly 24h is not more than 24h")
}
