package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"carshare/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("CARSHARE_TEST_SECRET", "s3cret")

	yamlContent := `
database:
  path: "test.db"
api:
  auth:
    jwt_secret: "${CARSHARE_TEST_SECRET}"
booking:
  sweep_interval: 5m
seed:
  users:
    - id: "owner-1"
      name: "Olga"
      role: owner
    - id: "cust-1"
      name: "Chris"
      role: customer
  cars:
    - id: "car-1"
      owner_id: "owner-1"
      make: "Skoda"
      model: "Octavia"
      price_per_day_cents: 5000
      is_listed: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.API.Auth.JWTSecret != "s3cret" {
		t.Errorf("expected jwt_secret to be expanded from env, got %q", cfg.API.Auth.JWTSecret)
	}
	if cfg.Booking.SweepInterval != 5*time.Minute {
		t.Errorf("expected sweep interval 5m, got %s", cfg.Booking.SweepInterval)
	}
	if cfg.Booking.MaxBookingDays != models.DefaultMaxBookingDays {
		t.Errorf("expected default max booking days, got %d", cfg.Booking.MaxBookingDays)
	}
	if len(cfg.Seed.Cars) != 1 || cfg.Seed.Cars[0].PricePerDayCents != 5000 {
		t.Errorf("expected 1 seed car priced 5000, got %+v", cfg.Seed.Cars)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "path"},
			API:      APIConfig{Auth: APIAuthConfig{JWTSecret: "secret"}},
			Booking:  BookingConfig{MaxBookingDays: 30},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "placeholder secret", mutate: func(c *Config) { c.API.Auth.JWTSecret = "CHANGE_ME" }, wantErr: true},
		{name: "zero max days", mutate: func(c *Config) { c.Booking.MaxBookingDays = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Booking.CancelWindow() != 24*time.Hour {
		t.Errorf("expected default cancel window 24h, got %s", cfg.Booking.CancelWindow())
	}
	if cfg.Booking.SweepInterval != models.DefaultSweepInterval {
		t.Errorf("expected default sweep interval, got %s", cfg.Booking.SweepInterval)
	}
	if cfg.API.RateLimit.ActionsPerMin != models.DefaultRateLimitActions {
		t.Errorf("expected default action limit %d, got %d", models.DefaultRateLimitActions, cfg.API.RateLimit.ActionsPerMin)
	}
}

func TestValidateSeed(t *testing.T) {
	owner := models.User{ID: "o1", Name: "Owner", Role: models.RoleOwner}
	customer := models.User{ID: "c1", Name: "Customer", Role: models.RoleCustomer}

	tests := []struct {
		name    string
		seed    SeedConfig
		wantErr bool
	}{
		{
			name: "Valid seed",
			seed: SeedConfig{
				Users: []models.User{owner, customer},
				Cars:  []models.Car{{ID: "car1", OwnerID: "o1", PricePerDayCents: 100}},
			},
			wantErr: false,
		},
		{
			name:    "Duplicate user",
			seed:    SeedConfig{Users: []models.User{owner, owner}},
			wantErr: true,
		},
		{
			name:    "Unknown role",
			seed:    SeedConfig{Users: []models.User{{ID: "x", Role: "admin"}}},
			wantErr: true,
		},
		{
			name: "Car owned by customer",
			seed: SeedConfig{
				Users: []models.User{customer},
				Cars:  []models.Car{{ID: "car1", OwnerID: "c1"}},
			},
			wantErr: true,
		},
		{
			name: "Negative price",
			seed: SeedConfig{
				Users: []models.User{owner},
				Cars:  []models.Car{{ID: "car1", OwnerID: "o1", PricePerDayCents: -1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeed(tt.seed)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSeed() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
