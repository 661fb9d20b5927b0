package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/crm-platform/internal/platform/config"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/logger"
	"github.com/baechuer/crm-platform/services/geocode-worker/internal/consumer"
	"github.com/baechuer/crm-platform/services/geocode-worker/internal/crmclient"
	"github.com/baechuer/crm-platform/services/geocode-worker/internal/geocoding"
)

func main() {
	config.LoadDotenv()
	logger.Init()
	log := logger.WithService("geocode-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crmURL, err := config.MustString("CRM_INTERNAL_URL")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	brokers := config.Brokers()
	dlq, err := kafka.NewDLQProducer(brokers)
	if err != nil {
		log.Fatal().Err(err).Msg("dlq producer connect failed")
	}
	defer dlq.Close()

	handler := consumer.NewHandler(
		geocoding.NewMock(),
		crmclient.New(crmURL, config.GetDuration("CRM_TIMEOUT", 10*time.Second)),
		log,
	)

	worker, err := kafka.NewConsumer(kafka.Config{
		Brokers: brokers,
		GroupID: "geocode-worker-group",
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

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		addr := config.GetString("HTTP_ADDR", ":8085")
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
	log.Info().Msg("geocode worker stopped")
}
