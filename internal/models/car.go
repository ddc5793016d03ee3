package models

import "time"

type Car struct {
	ID               string    `yaml:"id" json:"id"`
	OwnerID          string    `yaml:"owner_id" json:"owner_id"`
	Make             string    `yaml:"make" json:"make"`
	Model            string    `yaml:"model" json:"model"`
	Year             int       `yaml:"year" json:"year"`
	PricePerDayCents int64     `yaml:"price_per_day_cents" json:"price_per_day_cents"`
	IsListed         bool      `yaml:"is_listed" json:"is_listed"`
	CreatedAt        time.Time `yaml:"-" json:"created_at"`
	UpdatedAt        time.Time `yaml:"-" json:"updated_at"`
}

func (c *Car) Summary() CarSummary {
	return CarSummary{
		ID:               c.ID,
		OwnerID:          c.OwnerID,
		Make:             c.Make,
		Model:            c.Model,
		Year:             c.Year,
		PricePerDayCents: c.PricePerDayCents,
		IsListed:         c.IsListed,
	}
}
