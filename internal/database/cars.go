package database

import (
	"context"
	"fmt"

	"carshare/internal/domain"
	"carshare/internal/models"
)

func (db *DB) UpsertCars(ctx context.Context, cars []models.Car) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO cars (id, owner_id, make, model, year, price_per_day_cents, is_listed, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				owner_id = excluded.owner_id,
				make = excluded.make,
				model = excluded.model,
				year = excluded.year,
				price_per_day_cents = excluded.price_per_day_cents,
				is_listed = excluded.is_listed,
				updated_at = excluded.updated_at`
	now := db.now().UTC()
	for i := range cars {
		c := &cars[i]
		if c.PricePerDayCents < 0 {
			return fmt.Errorf("car %s: %w", c.ID, domain.ErrInvalidPrice)
		}
		_, err := tx.ExecContext(ctx, query,
			c.ID, c.OwnerID, c.Make, c.Model, c.Year, c.PricePerDayCents, c.IsListed, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert car %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (db *DB) GetCar(ctx context.Context, id string) (*models.Car, error) {
	query := `SELECT id, owner_id, make, model, year, price_per_day_cents, is_listed, created_at, updated_at
			  FROM cars WHERE id = ?`
	var c models.Car
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.OwnerID, &c.Make, &c.Model, &c.Year, &c.PricePerDayCents, &c.IsListed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, domain.ErrCarNotFound)
	}
	return &c, nil
}

// SetCarListed toggles whether a car accepts new bookings. Existing bookings are untouched.
func (db *DB) SetCarListed(ctx context.Context, id string, listed bool) error {
	result, err := db.ExecContext(ctx, `UPDATE cars SET is_listed = ?, updated_at = ? WHERE id = ?`, listed, db.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update car: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrCarNotFound
	}
	return nil
}
