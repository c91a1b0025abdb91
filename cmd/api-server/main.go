package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Aerzsu/dental-clinic-sub000/internal/api"
	"github.com/Aerzsu/dental-clinic-sub000/internal/catalog"
	"github.com/Aerzsu/dental-clinic-sub000/internal/config"
	"github.com/Aerzsu/dental-clinic-sub000/internal/db"
	"github.com/Aerzsu/dental-clinic-sub000/internal/holiday"
	"github.com/Aerzsu/dental-clinic-sub000/internal/metrics"
	"github.com/Aerzsu/dental-clinic-sub000/internal/notify"
	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
	redisclient "github.com/Aerzsu/dental-clinic-sub000/internal/redis"
	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "api-server").Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	scheduleRepo := schedule.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	catalogRepo := catalog.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPeriodLocker(rdb, cfg.LockTTL)
	resolver := patient.NewResolver(patientRepo)
	holidays := holiday.NewPgCalendar(pgPool)
	schedMetrics := metrics.NewSchedulingMetrics(nil)

	svc := schedule.NewService(scheduleRepo, locker, resolver, holidays, schedule.Settings{
		Defaults: schedule.CapacityDefaults{
			Morning:   cfg.DefaultMorningCapacity,
			Afternoon: cfg.DefaultAfternoonCapacity,
		},
		CancelWindow:  cfg.CancelWindow(),
		Timezone:      cfg.ClinicTimezone,
		ClosedWeekday: cfg.ClosedWeekday,
	}, logger).WithMetrics(schedMetrics)

	if cfg.SendGridAPIKey != "" {
		mailer := notify.NewMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger)
		svc.WithNotifier(mailer)
	} else {
		logger.Warn().Msg("SENDGRID_API_KEY not set, booking emails disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Catalog: catalogRepo,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
