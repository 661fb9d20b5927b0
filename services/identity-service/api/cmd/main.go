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
	"github.com/redis/go-redis/v9"

	"github.com/baechuer/crm-platform/internal/platform/auth"
	"github.com/baechuer/crm-platform/internal/platform/config"
	"github.com/baechuer/crm-platform/internal/platform/kafka"
	"github.com/baechuer/crm-platform/internal/platform/logger"
	"github.com/baechuer/crm-platform/services/identity-service/internal/application/identity"
	"github.com/baechuer/crm-platform/services/identity-service/internal/security"
	"github.com/baechuer/crm-platform/services/identity-service/internal/store/postgres"
	transport "github.com/baechuer/crm-platform/services/identity-service/internal/transport/http"
)

func main() {
	config.LoadDotenv()
	logger.Init()
	log := logger.WithService("identity-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret, err := config.MustString("TOKEN_SECRET")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	dsn, err := config.MustString("IDENTITY_DATABASE_URL")
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	producer, err := kafka.NewProducer(config.Brokers(), "identity-service")
	if err != nil {
		log.Fatal().Err(err).Msg("producer connect failed")
	}
	defer producer.Close()

	var redisClient *redis.Client
	if addr := config.GetString("REDIS_ADDR", ""); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()
	}

	ttl := time.Duration(config.GetInt("TOKEN_TTL_HOURS", 24)) * time.Hour
	issuer := auth.NewIssuer(secret, ttl)
	verifier := auth.NewVerifier(secret)

	svc := identity.NewService(
		postgres.NewTenantRepo(pool),
		postgres.NewUserRepo(pool),
		security.NewHasher(),
		issuer,
		producer,
		log,
	)

	router := transport.NewRouter(transport.RouterDeps{
		Handlers:   transport.NewHandlers(svc),
		Verifier:   verifier,
		Redis:      redisClient,
		LoginLimit: config.GetInt("LOGIN_RATE_LIMIT", 10),
	})

	addr := config.GetString("HTTP_ADDR", ":8081")
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("identity service listening")
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
