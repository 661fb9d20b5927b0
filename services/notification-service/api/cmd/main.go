package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/config"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/logger"
	"github.com/baechuer/crm-platform/services/notification-service/internal/consumer"
	"github.com/baechuer/crm-platform/services/notification-service/internal/store/postgres"
	transport "github.com/baechuer/crm-platform/services/notification-service/internal/transport/http"
)

func main() {
	config.LoadDotenv()
	logger.Init()
	log := logger.WithService("notification-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := config.MustString("TOKEN_SECRET")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	dsn, err := config.MustString("NOTIFICATION_DATABASE_URL")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	brokers := config.Brokers()
	dlq, err := kafka.NewDLQProducer(brokers)
	if err != nil {
		log.Fatal().Err(err).Msg("dlq producer connect failed")
	}
	defer dlq.Close()

	repo := postgres.NewNotificationRepo(pool)
	handler := consumer.NewHandler(repo, log)

	worker, err := kafka.NewConsumer(kafka.Config{
		Brokers: brokers,
		GroupID: "notification-service-group",
		Topics: []string{
			"crm.customer.created",
			"crm.customer.updated",
		},
		Handler:     handler.Handle,
		DLQ:         dlq,
		MaxRetries:  config.GetInt("CONSUMER_MAX_RETRIES", 3),
		BackoffBase: config.GetDuration("CONSUMER_BACKOFF_BASE", 2*time.Second),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("consumer setup failed")
	}

	router := transport.NewRouter(transport.NewHandlers(repo), auth.NewVerifier(secret))
	addr := config.GetString("HTTP_ADDR", ":8084")
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("notification api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	go func() {
		<-ctx.Done()
		if err := worker.Stop(); err != nil {
			log.Error().Err(err).Msg("consumer stop failed")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := worker.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("consumer failed")
	}
	log.Info().Msg("notification service stopped")
}
