// Command emotebot runs the emote relay: it publishes the registry's eligible
// emotes to the Telegram upload chat, then answers inline queries from the
// published set.
//
// Routes:
//
//	POST <telegram.webhookPath>    Bot API updates (inline queries)
//	GET  /api/v1/search            paged emote search
//	POST /api/v1/ingestion/run     on-demand ingestion run
//	GET  /health/live, /health/ready
//
// Usage:
//
//	go run ./cmd/emotebot [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/bot"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/download"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/search"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/telegram"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/transform"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting emote bot", "port", cfg.Server.Port, "storage", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("emote bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("emote bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is required")
	}

	cat, err := catalog.Load(cfg.Registry.Path)
	if err != nil {
		return err
	}
	slog.Info("registry loaded", "path", cfg.Registry.Path, "entries", cat.Len())

	store, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(store.Ping))

	var tracker analytics.Tracker = analytics.Discard{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		checker.Register("kafka", health.OptionalCheck(producer.Ping))
		collector := analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
	}

	transformer, err := newTransformer(cfg.Transform)
	if err != nil {
		return err
	}

	tg := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL, nil)
	uploadCaller := resilience.NewCaller(
		resilience.ThrottlePolicy{DefaultWait: cfg.Telegram.DefaultRetryAfter},
		resilience.WithWaitHook(func(name string, wait time.Duration) {
			m.RateLimitWaitsTotal.WithLabelValues(name).Inc()
			m.RateLimitWaitSeconds.Add(wait.Seconds())
		}),
	)

	index := published.NewIndex(store)
	pipeline := ingestion.New(ingestion.Deps{
		Published:   index,
		Downloads:   download.New(store, download.NewClient(cfg.Download.MaxIdleConns), cfg.Download.UserAgent, m),
		Transformer: transformer,
		Uploader:    tg,
		Caller:      uploadCaller,
		ChatID:      cfg.Telegram.UploadChatID,
		Tracker:     tracker,
		Metrics:     m,
	})
	runner := ingestion.NewRunner(pipeline, cat)

	searchIndex := search.NewIndex(cat, index, m)
	searchHandler := search.NewHandler(searchIndex, tracker)
	webhook := bot.NewWebhook(searchIndex, tg, bot.Options{
		Secret:  cfg.Telegram.WebhookSecret,
		Tracker: tracker,
	})

	checker.Register("telegram", health.OptionalCheck(tg.Ping))

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/search", middleware.Timeout(5*time.Second)(http.HandlerFunc(searchHandler.Search)))
	mux.HandleFunc("POST /api/v1/ingestion/run", runner.Trigger)
	mux.Handle(cfg.Telegram.WebhookPath, webhook)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m, "/api/v1/search", "/api/v1/ingestion/run", cfg.Telegram.WebhookPath, "/health/live", "/health/ready")(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Ingestion.RunOnStart {
		g.Go(func() error {
			summary, err := runner.Run(gctx)
			if err != nil {
				return fmt.Errorf("startup ingestion: %w", err)
			}
			slog.Info("startup ingestion finished",
				"eligible", summary.Eligible,
				"published", summary.Published,
				"skipped", summary.Skipped,
				"duration", summary.Duration,
			)
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("emote bot listening", "addr", server.Addr, "webhook_path", cfg.Telegram.WebhookPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Telegram.WebhookURL != "" {
		g.Go(func() error {
			if err := tg.SetWebhook(gctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return fmt.Errorf("registering webhook: %w", err)
			}
			slog.Info("webhook registered", "url", cfg.Telegram.WebhookURL)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newTransformer(cfg config.TransformConfig) (transform.Transformer, error) {
	switch cfg.Backend {
	case "pixel":
		return transform.NewPixel(), nil
	case "external":
		ext := transform.NewExternal(cfg.Command)
		if !ext.Available() {
			return nil, fmt.Errorf("transform command %q not found on PATH", cfg.Command)
		}
		return ext, nil
	default:
		return nil, fmt.Errorf("unknown transform backend %q", cfg.Backend)
	}
}
