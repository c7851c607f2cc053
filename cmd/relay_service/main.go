package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/conducthotline/hotline_services/internal/platform/cache"
	"github.com/conducthotline/hotline_services/internal/platform/config"
	"github.com/conducthotline/hotline_services/internal/platform/database"
	"github.com/conducthotline/hotline_services/internal/platform/distlock"
	"github.com/conducthotline/hotline_services/internal/platform/logger"
	"github.com/conducthotline/hotline_services/internal/platform/messagebroker"
	"github.com/conducthotline/hotline_services/internal/relay_service/adapters/telephony"
	"github.com/conducthotline/hotline_services/internal/relay_service/app"
	"github.com/conducthotline/hotline_services/internal/relay_service/domain"
	"github.com/conducthotline/hotline_services/internal/relay_service/repository/postgres"
)

const (
	serviceName        = "relay_service"
	defaultMetricsPort = 9099
	defaultGRPCPort    = 50061
	shutdownTimeout    = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Starting service...")

	metricsPort := cfg.RelayServiceMetricsPort
	if metricsPort == 0 {
		metricsPort = defaultMetricsPort
	}
	grpcPort := cfg.RelayServiceGRPCPort
	if grpcPort == 0 {
		grpcPort = defaultGRPCPort
	}
	appLogger.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"nats_url", cfg.NATSURL,
		"postgres_dsn_present", cfg.PostgresDSN != "",
		"telephony_provider", cfg.TelephonyProvider,
		"workers", cfg.RelayWorkerCount,
		"metrics_port", metricsPort,
		"grpc_port", grpcPort,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(mainCtx, cfg.RedisURL, appLogger)
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
	pool := app.NewNumberPool(store, audit, appLogger)
	verifier := app.NewVerifier(store, provider, audit, cfg.HotlineVirtualNumber, appLogger)
	lockTTL := time.Duration(cfg.RelayLockTTLSeconds) * time.Second
	router := app.NewRouter(store, pool, verifier, provider, audit, appLogger).
		WithLocker(distlock.NewLocker(redisClient, lockTTL))

	workers := cfg.RelayWorkerCount
	inbound := make(chan domain.InboundSMS, workers*25)
	consumer := app.NewSMSConsumer(nc, appLogger, inbound)

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", metricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return consumer.StartConsuming(groupCtx, app.InboundSMSSubject, app.RelayQueueGroup)
	})

	g.Go(func() error {
		appLogger.Info("Starting relay workers", "count", workers)
		return app.RunWorkers(groupCtx, workers, inbound, router, appLogger)
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		appLogger.Info("gRPC health server listening", "port", grpcPort)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		appLogger.Info("Metrics server listening", "port", metricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	appLogger.Info("Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var groupErr error
	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case groupErr = <-watchGroup(g):
		appLogger.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	appLogger.Info("Attempting graceful shutdown...")
	mainCancel()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Error during graceful shutdown of components", "error", err)
	}
	appLogger.Info("Service shutdown complete.")
}

// watchGroup reports the errgroup's result without blocking the signal select.
func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}
