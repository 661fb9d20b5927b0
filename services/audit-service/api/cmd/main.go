package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/crm-platform/internal/platform/config"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/logger"
	"github.com/baechuer/crm-platform/services/audit-service/internal/consumer"
	"github.com/baechuer/crm-platform/services/audit-service/internal/store/postgres"
)

func main() {
	config.LoadDotenv()
	logger.Init()
	log := logger.WithService("audit-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn, err := config.MustString("AUDIT_DATABASE_URL")
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

	handler := consumer.NewHandler(postgres.NewAuditRepo(pool), log)

	worker, err := kafka.NewConsumer(kafka.Config{
		Brokers: brokers,
		GroupID: "audit-service-group",
		Topics: []string{
			"crm.customer.created",
			"crm.customer.updated",
			"identity.tenant.created",
		},
		Handler:     handler.Handle,
		DLQ:         dlq,
		MaxRetries:  config.GetInt("CONSUMER_MAX_RETRIES", 3),
		BackoffBase: config.GetDuration("CONSUMER_BACKOFF_BASE", 2*time.Second),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("consumer setup failed")
	}

	// metrics and liveness sidecar
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		addr := config.GetString("HTTP_ADDR", ":8083")
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := worker.Stop(); err != nil {
			log.Error().Err(err).Msg("consumer stop failed")
		}
	}()

	if err := worker.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("consumer failed")
	}
	log.Info().Msg("audit service stopped")
}
