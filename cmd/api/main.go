package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carshare/internal/api"
	"carshare/internal/config"
	"carshare/internal/database"
	"carshare/internal/domain"
	"carshare/internal/events"
	"carshare/internal/export"
	"carshare/internal/logging"
	"carshare/internal/metrics"
	"carshare/internal/notify"
	"carshare/internal/repository"
	"carshare/internal/service"
	"carshare/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	limiter := initRateLimiter(ctx, redisClient, &logger)

	bus := events.NewEventBus()
	initNotifier(ctx, cfg, db, bus, &logger)

	bookingService := service.NewBookingService(db, db, bus, service.BookingServiceConfig{
		MaxBookingDays: cfg.Booking.MaxBookingDays,
		CancelWindow:   cfg.Booking.CancelWindow(),
	}, &logger)
	reviewService := service.NewReviewService(db, db, db, bus, &logger)

	grpcServer, err := api.NewGRPCServer(&cfg.API, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Dependencies{
		Bookings:      bookingService,
		Reviews:       reviewService,
		Exporter:      export.NewExporter(bookingService, &logger),
		ActionLimiter: limiter,
		Ready:         db.PingContext,
	}, &logger)

	startMetrics(ctx, cfg, &logger)
	startBackground(ctx, cfg, db, bookingService, grpcServer, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database.Path, cfg.Database.BusyTimeout, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.UpsertUsers(ctx, cfg.Seed.Users); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed users: %w", err)
	}
	if err := db.UpsertCars(ctx, cfg.Seed.Cars); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed cars: %w", err)
	}
	logger.Info().Int("users", len(cfg.Seed.Users)).Int("cars", len(cfg.Seed.Cars)).Msg("seed data applied")
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(ctx, client); err != nil {
		// The failover limiter keeps retrying the primary, so the client is kept.
		logger.Warn().Err(err).Msg("redis connection failed, rate limits fall back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initRateLimiter(ctx context.Context, client *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	memory := repository.NewMemoryLimiter()
	go pruneLimiter(ctx, memory)

	if client == nil {
		return memory
	}
	return repository.NewFailoverLimiter(repository.NewRedisLimiter(client), memory, logger)
}

func pruneLimiter(ctx context.Context, memory *repository.MemoryLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memory.Prune()
		}
	}
}

func initNotifier(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("telegram bot token not set, notifications disabled")
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	bot.Debug = cfg.Telegram.Debug

	notifier := notify.NewTelegramNotifier(bot, db, logger)
	notifier.Subscribe(bus)
	go notifier.Run(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startBackground(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	sweeper worker.Sweeper,
	grpcServer *api.GRPCServer,
	logger *zerolog.Logger,
) {
	if cfg.Booking.SweepEnabled {
		lifecycle := worker.NewLifecycleWorker(sweeper, cfg.Booking.SweepInterval, worker.DefaultRetryPolicy(), logger)
		go lifecycle.Start(ctx)
	} else {
		logger.Warn().Msg("lifecycle sweep disabled; bookings will not start or complete on their own")
	}

	backup := database.NewBackupService(db, cfg.Backup, logger)
	go backup.Start(ctx)

	go watchDatabase(ctx, db, grpcServer, logger)
}

// watchDatabase mirrors database reachability into the gRPC health status.
func watchDatabase(ctx context.Context, db *database.DB, grpcServer *api.GRPCServer, logger *zerolog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := db.PingContext(pingCtx)
			cancel()

			if ok := err == nil; ok != serving {
				serving = ok
				grpcServer.SetServing(ok)
				if ok {
					logger.Info().Msg("database reachable again")
				} else {
					logger.Error().Err(err).Msg("database unreachable")
				}
			}
		}
	}
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
