// Package main is the entry point for the linkgate service.
// It runs the OAuth callback server, the gRPC link service and the link event feed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/config"
	"github.com/parsascontentcorner/linkgate/internal/database"
	grpcserver "github.com/parsascontentcorner/linkgate/internal/grpc"
	"github.com/parsascontentcorner/linkgate/internal/linking"
	"github.com/parsascontentcorner/linkgate/internal/metrics"
	httpserver "github.com/parsascontentcorner/linkgate/internal/oauth"
	"github.com/parsascontentcorner/linkgate/internal/ratelimit"
	"github.com/parsascontentcorner/linkgate/internal/websocket"
	"github.com/parsascontentcorner/linkgate/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, logger.Options{Environment: cfg.Server.Env})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		// Sync errors on stdout/stderr are expected for non-syncable file descriptors
		_ = log.Sync()
	}()

	log.Info("starting linkgate",
		zap.String("environment", cfg.Server.Env),
		zap.String("http_port", cfg.Server.HTTPPort),
		zap.String("grpc_port", cfg.Server.GRPCPort),
		zap.String("rank_provider", cfg.Rank.Provider),
		zap.Bool("rank_optional", cfg.Rank.Optional),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	db, err := database.NewDB(ctx, &cfg.Database, logger.Component(log, "database"))
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if err := db.RunMigrations(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Link service and ticket expiry
	service := linking.NewService(db, linking.Config{
		TicketTTL:     cfg.Link.TicketTTL,
		RequireReview: cfg.Link.RequireReview,
		RankProvider:  cfg.Rank.Provider,
		RankOptional:  cfg.Rank.Optional,
		Messages:      linking.DefaultMessages(),
	}, logger.Component(log, "linking"), linking.WithMetrics(m))
	service.StartCleanupJob(ctx, cfg.Link.CleanupInterval)

	// OAuth providers share the header-driven API rate limiter
	rateLimiter := ratelimit.NewRateLimiter(log)
	authLog := logger.Component(log, "auth")
	discordClient := auth.NewDiscordClient(&cfg.Discord, authLog)
	discordClient.SetRateLimiter(rateLimiter)
	rankClient := auth.NewRankClient(&cfg.Rank, authLog)
	rankClient.SetRateLimiter(rateLimiter)
	providers := auth.NewProviders(discordClient, rankClient)

	codec := auth.NewStateCodec(cfg.Security.StateSecret, cfg.Security.StateSecretVersion)
	linkURLs := auth.NewLinkURLs(codec, providers)
	flow := auth.NewLinkFlow(codec, providers, service, cfg.Security.StateExpiry(), authLog)
	tokens := auth.NewServiceTokens([]byte(cfg.Security.ServiceTokenSecret))

	// Per-client callback limiter
	callbackLimiter := ratelimit.NewClientLimiter(cfg.Security.CallbackRateLimit, log)
	callbackLimiter.StartSweeper(ctx, 5*time.Minute)

	// Link event feed
	wsManager := websocket.NewManager(service.Events(), tokens, logger.Component(log, "feed"))
	wsDone := make(chan struct{})
	go func() {
		defer close(wsDone)
		wsManager.Run(ctx)
	}()

	// Initialize gRPC server
	linkServer := grpcserver.NewLinkServer(service, linkURLs, logger.Component(log, "grpc"))
	grpcServer, err := grpcserver.NewServer(linkServer, tokens, cfg.Server.GRPCPort, logger.Component(log, "grpc"))
	if err != nil {
		log.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Initialize HTTP server
	httpLog := logger.Component(log, "http")
	httpHandlers := httpserver.NewHandlers(flow, callbackLimiter, m, httpLog)
	httpServer := httpserver.NewServer(httpHandlers, cfg.Server.HTTPPort, httpserver.ServerOptions{
		Gatherer: registry,
		LinkFeed: wsManager,
	}, httpLog)

	// Start servers in goroutines
	grpcErrChan := make(chan error, 1)
	httpErrChan := make(chan error, 1)

	go func() {
		if err := grpcServer.Serve(); err != nil {
			grpcErrChan <- err
		}
	}()

	go func() {
		if err := httpServer.Serve(); err != nil {
			httpErrChan <- err
		}
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-grpcErrChan:
		log.Error("gRPC server error", zap.Error(err))
	case err := <-httpErrChan:
		log.Error("HTTP server error", zap.Error(err))
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	log.Info("shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server gracefully", zap.Error(err))
	}

	grpcServer.GracefulStop()

	// Stops the cleanup job and sweeper, and closes feed connections
	cancel()
	select {
	case <-wsDone:
	case <-shutdownCtx.Done():
		log.Warn("timed out closing link feed connections")
	}

	log.Info("servers shut down successfully")
}
