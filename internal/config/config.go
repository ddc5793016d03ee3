package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"carshare/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Seed       SeedConfig       `yaml:"seed"`
}

type BookingConfig struct {
	MaxBookingDays    int           `yaml:"max_booking_days"`
	CancelWindowHours int           `yaml:"cancel_window_hours"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SweepEnabled      bool          `yaml:"sweep_enabled"`
}

// CancelWindow is how long before start an upcoming booking can still be cancelled.
func (c BookingConfig) CancelWindow() time.Duration {
	return time.Duration(c.CancelWindowHours) * time.Hour
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type APIRateLimitConfig struct {
	RPS           float64       `yaml:"rps"`
	Burst         int           `yaml:"burst"`
	ActionsPerMin int           `yaml:"actions_per_window"`
	ActionWindow  time.Duration `yaml:"action_window"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// SeedConfig lists users and cars upserted on startup.
type SeedConfig struct {
	Users []models.User `yaml:"users"`
	Cars  []models.Car  `yaml:"cars"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Auth.JWTSecret == "" || c.API.Auth.JWTSecret == "CHANGE_ME" {
		return errors.New("api.auth.jwt_secret is required")
	}

	if c.Booking.MaxBookingDays < 1 {
		return fmt.Errorf("booking.max_booking_days must be positive, got %d", c.Booking.MaxBookingDays)
	}

	return ValidateSeed(c.Seed)
}

func ValidateSeed(seed SeedConfig) error {
	users := make(map[string]models.User, len(seed.Users))
	for _, u := range seed.Users {
		if u.ID == "" {
			return fmt.Errorf("seed user '%s' has empty ID", u.Name)
		}
		if _, dup := users[u.ID]; dup {
			return fmt.Errorf("duplicate seed user ID found: %s", u.ID)
		}
		if u.Role != models.RoleCustomer && u.Role != models.RoleOwner {
			return fmt.Errorf("seed user %s has unknown role %q", u.ID, u.Role)
		}
		users[u.ID] = u
	}

	cars := make(map[string]bool, len(seed.Cars))
	for _, car := range seed.Cars {
		if car.ID == "" {
			return fmt.Errorf("seed car '%s %s' has empty ID", car.Make, car.Model)
		}
		if cars[car.ID] {
			return fmt.Errorf("duplicate seed car ID found: %s", car.ID)
		}
		cars[car.ID] = true

		owner, ok := users[car.OwnerID]
		if !ok || owner.Role != models.RoleOwner {
			return fmt.Errorf("seed car %s references unknown owner %q", car.ID, car.OwnerID)
		}
		if car.PricePerDayCents < 0 {
			return fmt.Errorf("seed car %s has negative price", car.ID)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "carshare"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.API.RateLimit.ActionsPerMin == 0 {
		c.API.RateLimit.ActionsPerMin = models.DefaultRateLimitActions
	}
	if c.API.RateLimit.ActionWindow == 0 {
		c.API.RateLimit.ActionWindow = models.DefaultRateLimitWindow
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5 * time.Second
	}

	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Booking.CancelWindowHours == 0 {
		c.Booking.CancelWindowHours = int(models.DefaultCancelWindow / time.Hour)
	}
	if c.Booking.SweepInterval == 0 {
		c.Booking.SweepInterval = models.DefaultSweepInterval
	}
}
