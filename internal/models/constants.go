package models

import "time"

const (
	RoleCustomer = "customer"
	RoleOwner    = "owner"
)

const (
	// DateLayout is the wire and storage format of booking dates.
	DateLayout = "2006-01-02"

	// DefaultMaxBookingDays caps the priced span of a single booking.
	DefaultMaxBookingDays = 30

	// DefaultCancelWindow is how long before start an upcoming booking stays cancelable.
	DefaultCancelWindow = 24 * time.Hour

	// ReviewCommentMinLength and ReviewCommentMaxLength bound a non-empty comment, in runes.
	ReviewCommentMinLength = 10
	ReviewCommentMaxLength = 500

	MinRating = 1
	MaxRating = 5

	// DefaultSweepInterval is how often the lifecycle sweeper runs.
	DefaultSweepInterval = 15 * time.Minute

	// DefaultRateLimitActions per DefaultRateLimitWindow for mutating actions of one user.
	DefaultRateLimitActions = 30
	DefaultRateLimitWindow  = time.Minute
)
