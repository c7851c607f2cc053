package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conducthotline/hotline_services/internal/platform/cache"
	"github.com/conducthotline/hotline_services/internal/platform/config"
	"github.com/conducthotline/hotline_services/internal/platform/database"
	"github.com/conducthotline/hotline_services/internal/platform/logger"
	"github.com/conducthotline/hotline_services/internal/platform/messagebroker"
	httptransport "github.com/conducthotline/hotline_services/internal/public_api_service/transport/http"
	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/app"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository/postgres"
)

const (
	serviceName     = "public_api_service"
	dedupKeyPrefix  = "webhook:sms:"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Public API service starting...", "port", cfg.PublicAPIServicePort)

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	nc, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	provider, err := telephony.NewProvider(cfg.TelephonyProvider, telephony.VonageConfig{
		APIKey:        cfg.VonageAPIKey,
		APISecret:     cfg.VonageAPISecret,
		ApplicationID: cfg.VonageApplicationID,
		SMSURL:        cfg.VonageSMSURL,
		VoiceURL:      cfg.VonageVoiceURL,
	}, cfg.VonagePrivateKeyPath, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize telephony provider", "error", err)
		os.Exit(1)
	}

	store := postgres.NewStore(dbPool, appLogger)
	audit := app.NewAuditLogger(store.AuditLogs(), appLogger)
	voice := app.NewVoiceRouter(store, provider, audit, cfg.HoldMusicURL, appLogger)
	events := app.NewEventAdmin(store, audit, appLogger)
	numbers := app.NewNumberPool(store, audit, appLogger)
	verifier := app.NewVerifier(store, provider, audit, cfg.HotlineVirtualNumber, appLogger)

	dedupTTL := time.Duration(cfg.WebhookDedupTTLSeconds) * time.Second
	dedup := cache.NewDeduplicator(redisClient, dedupKeyPrefix, dedupTTL)

	validate := validator.New()
	telephonyHandler := httptransport.NewTelephonyHandler(nc, dedup, voice, validate,
		cfg.PhoneDefaultRegion, cfg.PublicHost, appLogger)
	adminHandler := httptransport.NewAdminHandler(events, numbers, verifier, validate, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.PublicAPIServicePort),
		Handler:           httptransport.NewRouter(telephonyHandler, adminHandler, []byte(cfg.JWTAccessSecret), appLogger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server forced to shutdown", "error", err)
	}
	appLogger.Info("HTTP server stopped.")
}
