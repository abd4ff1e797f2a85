package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/auth"
	"github.com/edgecomet/pagepurge/internal/common/config"
	"github.com/edgecomet/pagepurge/internal/common/logger"
	"github.com/edgecomet/pagepurge/internal/common/metricsserver"
	"github.com/edgecomet/pagepurge/internal/common/redis"
	"github.com/edgecomet/pagepurge/internal/hooks"
	"github.com/edgecomet/pagepurge/internal/metrics"
	"github.com/edgecomet/pagepurge/internal/nonce"
	"github.com/edgecomet/pagepurge/internal/pagecache"
	"github.com/edgecomet/pagepurge/internal/purge"
	"github.com/edgecomet/pagepurge/internal/server"
	"github.com/edgecomet/pagepurge/internal/settings"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("c", "configs/purge-gateway.yaml", "path to purge-gateway configuration file")
	issueSession := flag.String("issue-session", "", "print an administrator session token for the given user id and exit")
	sessionTTL := flag.Duration("session-ttl", 24*time.Hour, "lifetime of a token printed by -issue-session")
	flag.Parse()

	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Purge Gateway",
		zap.String("config_path", *configPath))

	cfg, err := config.LoadGatewayConfig(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to load gateway config", zap.Error(err))
	}

	sessions := auth.NewSessionAuthenticator(cfg.Session, initialLogger.Logger)
	if *issueSession != "" {
		token, err := sessions.IssueSession(*issueSession, []string{cfg.Session.AdminCapability}, *sessionTTL)
		if err != nil {
			initialLogger.Fatal("Failed to issue session", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	// Reconfigure logger (uses INFO level during startup if configured level is higher)
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()
	zapLogger := dynamicLogger.Logger

	redisClient, err := redis.NewClient(&cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	keys := redis.NewKeyGenerator(cfg.Purge.KeyPrefix)
	pages := pagecache.NewStore(redisClient, keys, zapLogger)
	promMetrics := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace, zapLogger)
	engine := metrics.NewInstrumentedEngine(pages, promMetrics)

	tokens := nonce.NewService(cfg.Nonce, redisClient, keys, zapLogger)
	settingsStore := settings.NewStore(redisClient, keys, cfg.Purge.AlwaysPurgeURLs, zapLogger)

	labels, err := purge.NewLabels()
	if err != nil {
		zapLogger.Fatal("Failed to build toolbar labels", zap.Error(err))
	}

	dispatcher := purge.NewDispatcher(engine, purge.DispatcherConfig{
		AdminPath:    cfg.Server.AdminPath,
		RequireToken: cfg.Nonce.RequireToken(),
	}, promMetrics, zapLogger)

	gateway := server.NewGateway(cfg.Server, cfg.Site.BaseURL, server.Deps{
		Sessions:    sessions,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
		LinkBuilder: purge.NewLinkBuilder(tokens, labels, promMetrics, zapLogger),
		Settings:    settingsStore,
		Hooks:       hooks.NewRegistry[*server.Payload](zapLogger),
	}, zapLogger)

	go func() {
		if err := gateway.Start(); err != nil {
			zapLogger.Fatal("Gateway server error", zap.Error(err))
		}
	}()

	var internalServer *server.InternalServer
	if cfg.Internal.Listen != "" {
		publisher := settings.NewPublishPurger(settingsStore, engine, zapLogger)
		operatorPurger := metrics.NewInstrumentedPurger(pages, promMetrics)
		internalServer = server.NewInternalServer(cfg.Internal.AuthKey, operatorPurger, publisher, redisClient, promMetrics, zapLogger)
		go func() {
			if err := internalServer.Start(cfg.Internal.Listen); err != nil {
				zapLogger.Error("Internal server error", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Warn("Internal API is disabled in configuration")
	}

	metricsSrv, err := metricsserver.Start(cfg.Metrics, promMetrics, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	zapLogger.Info("Purge gateway started",
		zap.String("listen", cfg.Server.Listen),
		zap.String("base_url", cfg.Site.BaseURL),
		zap.Bool("require_token", cfg.Nonce.RequireToken()))
	if metricsSrv != nil {
		zapLogger.Info("Metrics endpoint ready", zap.String("addr", metricsSrv.Addr()+cfg.Metrics.Path))
	}

	// Switch to configured log level after startup is complete
	dynamicLogger.SwitchToConfiguredLevel()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("Shutting down Purge Gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gateway.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gateway gracefully", zap.Error(err))
	}
	if internalServer != nil {
		if err := internalServer.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown internal server gracefully", zap.Error(err))
		}
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown metrics server gracefully", zap.Error(err))
		}
	}

	zapLogger.Info("Purge gateway stopped")
}
