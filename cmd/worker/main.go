// The worker runs the reminder scheduler and the reply consumer without
// the HTTP API, for deployments that scale the two independently. Only one
// worker instance should run per clinic database unless overlapping cycles
// are acceptable; the conditional claims keep even that case duplicate-free.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dentalert/dentalert-api/internal/config"
	"github.com/dentalert/dentalert-api/internal/email"
	"github.com/dentalert/dentalert-api/internal/messenger/whatsapp"
	"github.com/dentalert/dentalert-api/internal/repository/postgres"
	"github.com/dentalert/dentalert-api/internal/service/reminder"
	"github.com/dentalert/dentalert-api/internal/service/reply"
	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/messaging/redis"
	"github.com/dentalert/dentalert-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil).WithFields(map[string]interface{}{"component": "worker"})
	appMetrics := metrics.New("dentalert_worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	patientRepo := postgres.NewPatientRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	messageLogRepo := postgres.NewMessageLogRepository(db)

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	waClient := whatsapp.NewClient(whatsapp.Config{
		BaseURL:      cfg.Whatsapp.GatewayURL,
		Token:        cfg.Whatsapp.Token,
		Timeout:      cfg.Whatsapp.Timeout,
		PollInterval: cfg.Whatsapp.PollInterval,
	}, appLogger, appMetrics)

	var emailSvc email.Service = email.NopService{}
	if cfg.SMTP.Enabled {
		emailSvc = email.NewService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	engine := reminder.NewEngine(
		appointmentRepo,
		patientRepo,
		messageLogRepo,
		waClient,
		emailSvc,
		broker,
		reminder.Config{
			FirstWindowStart:   cfg.Reminders.FirstWindowStart,
			FirstWindowEnd:     cfg.Reminders.FirstWindowEnd,
			SecondWindowStart:  cfg.Reminders.SecondWindowStart,
			SecondWindowEnd:    cfg.Reminders.SecondWindowEnd,
			MaxConcurrentSends: cfg.Reminders.MaxConcurrentSends,
		},
		appLogger,
		appMetrics,
	)
	scheduler := reminder.NewScheduler(engine, cfg.Reminders.PollInterval, reminder.SystemClock(), appLogger)

	replyHandler := reply.NewHandler(patientRepo, appointmentRepo, messageLogRepo, waClient, appLogger, appMetrics)
	replyConsumer := reply.NewConsumer(broker, replyHandler, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Start(ctx)
	go func() {
		if err := replyConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("reply consumer stopped")
		}
	}()
	go waClient.StartStatusPolling(ctx)

	// Liveness and metrics endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	log.Info().Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("worker shutting down")
	cancel()
}
