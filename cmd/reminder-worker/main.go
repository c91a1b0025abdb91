package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Aerzsu/dental-clinic-sub000/internal/config"
	"github.com/Aerzsu/dental-clinic-sub000/internal/db"
	"github.com/Aerzsu/dental-clinic-sub000/internal/holiday"
	"github.com/Aerzsu/dental-clinic-sub000/internal/notify"
	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
	redisclient "github.com/Aerzsu/dental-clinic-sub000/internal/redis"
	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "reminder-worker").Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	logger.Info().Str("env", cfg.Env).Str("cron", cfg.ReminderCronSpec).Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() { _ = rdb.Close() }()

	if cfg.SendGridAPIKey == "" {
		logger.Fatal().Msg("SENDGRID_API_KEY is required for the reminder worker")
	}
	mailer := notify.NewMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger)

	scheduleRepo := schedule.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPeriodLocker(rdb, cfg.LockTTL)
	resolver := patient.NewResolver(patientRepo)

	svc := schedule.NewService(scheduleRepo, locker, resolver, holiday.NewPgCalendar(pgPool), schedule.Settings{
		Defaults: schedule.CapacityDefaults{
			Morning:   cfg.DefaultMorningCapacity,
			Afternoon: cfg.DefaultAfternoonCapacity,
		},
		CancelWindow:  cfg.CancelWindow(),
		Timezone:      cfg.ClinicTimezone,
		ClosedWeekday: cfg.ClosedWeekday,
	}, logger)

	worker := &reminderWorker{
		svc:      svc,
		patients: patientRepo,
		mailer:   mailer,
		tz:       cfg.ClinicTimezone,
		log:      logger,
	}

	c := cron.New(cron.WithLocation(cfg.ClinicTimezone))
	if _, err := c.AddFunc(cfg.ReminderCronSpec, func() { worker.runOnce(rootCtx) }); err != nil {
		logger.Fatal().Err(err).Msg("invalid reminder cron spec")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping reminder worker")

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.ShutdownTimeout):
	}
}

type reminderWorker struct {
	svc      *schedule.Service
	patients patient.Repository
	mailer   *notify.Mailer
	tz       *time.Location
	log      zerolog.Logger
}

// runOnce mails every confirmed booking scheduled for tomorrow.
func (w *reminderWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tomorrow := time.Now().In(w.tz).AddDate(0, 0, 1)
	start := time.Now()

	bookings, err := w.svc.ConfirmedForDate(runCtx, tomorrow)
	if err != nil {
		w.log.Error().Err(err).Msg("load confirmed bookings for reminders")
		return
	}

	sent := 0
	for i := range bookings {
		b := &bookings[i]
		patientID, ok := b.Identity.Linked()
		if !ok {
			// A confirmed booking always carries a linked patient.
			w.log.Warn().Stringer("booking_id", b.ID).Msg("confirmed booking without linked patient, skipping")
			continue
		}

		p, err := w.patients.GetByID(runCtx, patientID)
		if err != nil {
			w.log.Warn().Err(err).Stringer("booking_id", b.ID).Msg("load patient for reminder")
			continue
		}

		w.mailer.BookingReminder(runCtx, p, b)
		sent++
	}

	w.log.Info().
		Int("bookings", len(bookings)).
		Int("reminders_sent", sent).
		Dur("took", time.Since(start)).
		Msg("reminder run complete")
}
