// Command server runs the LoRA training backend: a metered HTTP API for
// uploading training videos, submitting LoRA fine-tune jobs to a provider,
// and settling usage charges against per-user wallets.
//
// Startup order: env → config → logging → tracing → database → blob store →
// provider adapter → event publisher → router → HTTP server. Shutdown drains
// in-flight requests, then flushes traces and the event publisher.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-lora-backend/internal/config"
	"github.com/tbourn/go-lora-backend/internal/events"
	httpapi "github.com/tbourn/go-lora-backend/internal/http"
	"github.com/tbourn/go-lora-backend/internal/observability"
	"github.com/tbourn/go-lora-backend/internal/provider"
	"github.com/tbourn/go-lora-backend/internal/repo"
	"github.com/tbourn/go-lora-backend/internal/storage"
	"github.com/tbourn/go-lora-backend/internal/sysutil"

	_ "github.com/tbourn/go-lora-backend/docs" // swagger registration
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title           go-lora-backend API
// @version         1.0
// @description     Metered LoRA training orchestration: models, video uploads, training jobs and wallet.
// @BasePath        /api/v1
//
// @securityDefinitions.apikey UserID
// @in   header
// @name X-User-ID
func main() {
	// .env is optional; real deployments use actual env variables.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	gin.SetMode(cfg.GinMode)

	// Tracing
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Blob store for training videos
	store, err := storage.New(storage.Config{
		Backend:        cfg.Storage.Backend,
		LocalBasePath:  cfg.Storage.LocalPath,
		LocalBaseURL:   cfg.Storage.LocalBaseURL,
		MinioEndpoint:  cfg.Storage.MinioEndpoint,
		MinioAccessKey: cfg.Storage.MinioAccessKey,
		MinioSecretKey: cfg.Storage.MinioSecretKey,
		MinioBucket:    cfg.Storage.MinioBucket,
		MinioUseSSL:    cfg.Storage.MinioUseSSL,
		MinioPublicURL: cfg.Storage.MinioPublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage setup failed")
	}

	// Training provider adapter
	adapter, err := provider.New(provider.Config{
		Variant:     cfg.Provider.Variant,
		HTTPTimeout: cfg.Provider.HTTPTimeout,
		External: provider.ExternalConfig{
			TrainURL:          cfg.Provider.ExternalTrainURL,
			StatusURLTemplate: cfg.Provider.ExternalStatusURLTemplate,
			Token:             cfg.Provider.ExternalToken,
		},
		Fal: provider.FalConfig{
			Endpoint: cfg.Provider.FalEndpoint,
			APIKey:   cfg.Provider.FalAPIKey,
			BaseURL:  cfg.Provider.FalBaseURL,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Str("variant", cfg.Provider.Variant).Msg("provider setup failed")
	}

	// Domain event publisher (nil when no brokers configured)
	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// Router
	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, adapter, publisher, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("provider", adapter.Name()).
			Str("storage", cfg.Storage.Backend).
			Str("version", version).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("event publisher close failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("bye")
}
