// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search and publish events from Kafka, aggregates them in memory
// (search volume, zero-result queries, latency percentiles, top queries,
// emotes published by kind) and serves them at GET /api/v1/analytics. The
// aggregate is snapshotted to the key-value store every minute and served at
// GET /api/v1/analytics/snapshot.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/middleware"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kvstore.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))

	go func() {
		if err := aggregator.Start(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	snapshots := analytics.NewSnapshotStore(store)
	snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)

	analyticsHandler := analytics.NewHandler(aggregator, snapshots)

	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(store.Ping))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", analyticsHandler.Snapshot)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
