package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/config"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/logger"
	"github.com/baechuer/crm-platform/services/crm-service/internal/application/customer"
	"github.com/baechuer/crm-platform/services/crm-service/internal/store/postgres"
	transport "github.com/baechuer/crm-platform/services/crm-service/internal/transport/http"
)

func main() {
	config.LoadDotenv()
	logger.Init()
	log := logger.WithService("crm-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := config.MustString("TOKEN_SECRET")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	dsn, err := config.MustString("CRM_DATABASE_URL")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	producer, err := kafka.NewProducer(config.Brokers(), "crm-service")
	if err != nil {
		log.Fatal().Err(err).Msg("producer connect failed")
	}
	defer producer.Close()

	svc := customer.NewService(postgres.NewCustomerRepo(pool), producer, log)
	router := transport.NewRouter(transport.NewHandlers(svc), auth.NewVerifier(secret))

	addr := config.GetString("HTTP_ADDR", ":8082")
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("crm service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
		os.Exit(1)
	}
}
