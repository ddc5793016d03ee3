package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `b.id, b.customer_id, b.car_id, b.start_date, b.end_date,
	b.total_price_cents, b.status, b.rejection_reason, b.created_at, b.updated_at`

const bookingDetailsQuery = `SELECT ` + bookingColumns + `,
	u.id, u.name, u.email,
	c.id, c.owner_id, c.make, c.model, c.year, c.price_per_day_cents, c.is_listed
	FROM bookings b
	JOIN users u ON u.id = b.customer_id
	JOIN cars c ON c.id = b.car_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := db.now().UTC()

	query := `INSERT INTO bookings (
				id, customer_id, car_id, start_date, end_date,
				total_price_cents, status, rejection_reason, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.CarID,
		models.FormatDate(booking.StartDate),
		models.FormatDate(booking.EndDate),
		booking.TotalPriceCents,
		booking.Status,
		booking.RejectionReason,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrBookingNotFound)
	}
	return booking, nil
}

func (db *DB) GetBookingDetails(ctx context.Context, id string) (*models.BookingDetails, error) {
	details, err := scanBookingDetails(db.QueryRowContext(ctx, bookingDetailsQuery+` WHERE b.id = ?`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrBookingNotFound)
	}
	return details, nil
}

// ListActiveCarBookings returns the non-terminal bookings of a car, skipping excludeBookingID.
func (db *DB) ListActiveCarBookings(ctx context.Context, carID, excludeBookingID string) ([]*models.Booking, error) {
	args := []any{carID, excludeBookingID}
	args = append(args, models.StatusStrings(models.NonTerminalStatuses)...)

	query := `SELECT ` + bookingColumns + ` FROM bookings b
			  WHERE b.car_id = ? AND b.id != ? AND b.status IN (` + placeholders(len(models.NonTerminalStatuses)) + `)
			  ORDER BY b.start_date`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list car bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// TransitionBooking applies a conditional status update and returns the number
// of rows changed: 1 when every predicate held, 0 otherwise.
func (db *DB) TransitionBooking(ctx context.Context, t models.StatusTransition) (int64, error) {
	if len(t.From) == 0 {
		return 0, fmt.Errorf("transition of booking %s has no source status", t.BookingID)
	}

	var reason *string
	if t.To == models.StatusRejected {
		reason = t.RejectionReason
	}

	var sb strings.Builder
	sb.WriteString(`UPDATE bookings SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status IN (`)
	sb.WriteString(placeholders(len(t.From)))
	sb.WriteString(`)`)

	args := []any{t.To, reason, db.now().UTC(), t.BookingID}
	args = append(args, models.StatusStrings(t.From)...)

	if t.CustomerID != "" {
		sb.WriteString(` AND customer_id = ?`)
		args = append(args, t.CustomerID)
	}
	if t.OwnerID != "" {
		sb.WriteString(` AND car_id IN (SELECT id FROM cars WHERE owner_id = ?)`)
		args = append(args, t.OwnerID)
	}

	result, err := db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

func (db *DB) ListCustomerBookings(ctx context.Context, customerID string, status models.BookingStatus) ([]*models.BookingDetails, error) {
	return db.listBookingDetails(ctx, `b.customer_id = ?`, customerID, status)
}

func (db *DB) ListOwnerBookings(ctx context.Context, ownerID string, status models.BookingStatus) ([]*models.BookingDetails, error) {
	return db.listBookingDetails(ctx, `c.owner_id = ?`, ownerID, status)
}

func (db *DB) listBookingDetails(ctx context.Context, where string, id string, status models.BookingStatus) ([]*models.BookingDetails, error) {
	query := bookingDetailsQuery + ` WHERE ` + where
	args := []any{id}
	if status != "" {
		query += ` AND b.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY b.created_at DESC, b.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.BookingDetails
	for rows.Next() {
		d, err := scanBookingDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBookingsToStart returns upcoming bookings whose start date has been reached.
func (db *DB) ListBookingsToStart(ctx context.Context, today time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
			  WHERE b.status = ? AND b.start_date <= ? ORDER BY b.start_date`
	rows, err := db.QueryContext(ctx, query, models.StatusUpcoming, models.FormatDate(today))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings to start: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListBookingsToComplete returns ongoing bookings whose end date has passed.
func (db *DB) ListBookingsToComplete(ctx context.Context, today time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b
			  WHERE b.status = ? AND b.end_date < ? ORDER BY b.end_date`
	rows, err := db.QueryContext(ctx, query, models.StatusOngoing, models.FormatDate(today))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings to complete: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                models.Booking
		startStr, endStr string
		reason           sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.CarID, &startStr, &endStr,
		&b.TotalPriceCents, &b.Status, &reason, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fillBookingDates(&b, startStr, endStr, reason); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookingDetails(row rowScanner) (*models.BookingDetails, error) {
	var (
		d                models.BookingDetails
		startStr, endStr string
		reason           sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.CustomerID, &d.CarID, &startStr, &endStr,
		&d.TotalPriceCents, &d.Status, &reason, &d.CreatedAt, &d.UpdatedAt,
		&d.Customer.ID, &d.Customer.Name, &d.Customer.Email,
		&d.Car.ID, &d.Car.OwnerID, &d.Car.Make, &d.Car.Model, &d.Car.Year,
		&d.Car.PricePerDayCents, &d.Car.IsListed,
	)
	if err != nil {
		return nil, err
	}
	if err := fillBookingDates(&d.Booking, startStr, endStr, reason); err != nil {
		return nil, err
	}
	return &d, nil
}

func fillBookingDates(b *models.Booking, startStr, endStr string, reason sql.NullString) error {
	var err error
	if b.StartDate, err = models.ParseDate(startStr); err != nil {
		return fmt.Errorf("booking %s: %w", b.ID, err)
	}
	if b.EndDate, err = models.ParseDate(endStr); err != nil {
		return fmt.Errorf("booking %s: %w", b.ID, err)
	}
	if reason.Valid {
		r := reason.String
		b.RejectionReason = &r
	}
	return nil
}
