package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dentalert/dentalert-api/internal/config"
	"github.com/dentalert/dentalert-api/internal/email"
	"github.com/dentalert/dentalert-api/internal/handler"
	appointmentHandler "github.com/dentalert/dentalert-api/internal/handler/appointment"
	authHandler "github.com/dentalert/dentalert-api/internal/handler/auth"
	messengerHandler "github.com/dentalert/dentalert-api/internal/handler/messenger"
	patientHandler "github.com/dentalert/dentalert-api/internal/handler/patient"
	"github.com/dentalert/dentalert-api/internal/messenger/whatsapp"
	"github.com/dentalert/dentalert-api/internal/middleware"
	"github.com/dentalert/dentalert-api/internal/repository/postgres"
	"github.com/dentalert/dentalert-api/internal/router"
	appointmentService "github.com/dentalert/dentalert-api/internal/service/appointment"
	authService "github.com/dentalert/dentalert-api/internal/service/auth"
	patientService "github.com/dentalert/dentalert-api/internal/service/patient"
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

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.New("dentalert")

	// Database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	messageLogRepo := postgres.NewMessageLogRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Message broker
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

	// WhatsApp gateway client
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

	// Services
	patientSvc := patientService.NewService(patientRepo)
	appointmentSvc := appointmentService.NewService(appointmentRepo, patientRepo)
	authSvc := authService.NewService(userRepo, authService.Config{
		Secret:      cfg.JWT.Secret,
		ExpiryHours: cfg.JWT.ExpiryHours,
	})

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

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	healthH := handler.NewHealthHandler(db)
	authH := authHandler.NewHandler(authSvc)
	patientH := patientHandler.NewHandler(patientSvc)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc, messageLogRepo)
	messengerH := messengerHandler.NewHandler(waClient, broker, appLogger)

	r := router.NewRouter(
		authMiddleware,
		healthH,
		authH,
		patientH,
		appointmentH,
		messengerH,
		messengerH,
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background loops: reminder cycles, inbound replies, gateway status.
	go scheduler.Start(ctx)
	go func() {
		if err := replyConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("reply consumer stopped")
		}
	}()
	go waClient.StartStatusPolling(ctx)

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
