// Command ingest performs a single ingestion run over the emote registry and
// exits. It exits 1 when the run fails, after logging the failing entry and
// stage; rerunning resumes where the failed run stopped.
//
// Usage:
//
//	go run ./cmd/ingest [-config configs/development.yaml] [-registry emote-registry.json]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/download"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/telegram"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/transform"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	registryPath := flag.String("registry", "", "registry path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *registryPath != "" {
		cfg.Registry.Path = *registryPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg)
	if err != nil {
		var stageErr *ingestion.StageError
		if errors.As(err, &stageErr) {
			slog.Error("ingestion failed",
				"ref", stageErr.Ref,
				"emote_id", stageErr.ID,
				"stage", stageErr.Stage,
				"published", summary.Published,
				"error", stageErr.Err,
			)
		} else {
			slog.Error("ingestion failed", "error", err)
		}
		os.Exit(1)
	}
	slog.Info("ingestion complete",
		"eligible", summary.Eligible,
		"published", summary.Published,
		"skipped", summary.Skipped,
		"duration", summary.Duration,
	)
}

func run(ctx context.Context, cfg *config.Config) (ingestion.Summary, error) {
	cat, err := catalog.Load(cfg.Registry.Path)
	if err != nil {
		return ingestion.Summary{}, err
	}

	store, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return ingestion.Summary{}, fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	var transformer transform.Transformer = transform.NewPixel()
	if cfg.Transform.Backend == "external" {
		transformer = transform.NewExternal(cfg.Transform.Command)
	}

	m := metrics.New(prometheus.NewRegistry())
	tg := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL, nil)

	pipeline := ingestion.New(ingestion.Deps{
		Published:   published.NewIndex(store),
		Downloads:   download.New(store, download.NewClient(cfg.Download.MaxIdleConns), cfg.Download.UserAgent, m),
		Transformer: transformer,
		Uploader:    tg,
		Caller:      resilience.NewCaller(resilience.ThrottlePolicy{DefaultWait: cfg.Telegram.DefaultRetryAfter}),
		ChatID:      cfg.Telegram.UploadChatID,
		Metrics:     m,
	})
	return pipeline.Run(ctx, cat)
}
