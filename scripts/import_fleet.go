package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"carshare/internal/config"
	"carshare/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Imports users and cars from a YAML file shaped like the config "seed" section.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		fleetPath = flag.String("fleet", "configs/fleet.yaml", "path to fleet yaml (users, cars)")
		dbPath    = flag.String("db", "./data/carshare.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*fleetPath)
	if err != nil {
		return fmt.Errorf("read fleet: %w", err)
	}
	var fleet config.SeedConfig
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fleet); err != nil {
		return fmt.Errorf("parse fleet: %w", err)
	}
	if len(fleet.Users) == 0 && len(fleet.Cars) == 0 {
		return fmt.Errorf("no users or cars in yaml")
	}
	if err = config.ValidateSeed(fleet); err != nil {
		return fmt.Errorf("validate fleet: %w", err)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = db.UpsertUsers(ctx, fleet.Users); err != nil {
		return fmt.Errorf("import users: %w", err)
	}
	if err = db.UpsertCars(ctx, fleet.Cars); err != nil {
		return fmt.Errorf("import cars: %w", err)
	}

	logger.Info().Int("users", len(fleet.Users)).Int("cars", len(fleet.Cars)).Msg("Fleet import finished")
	return nil
}
