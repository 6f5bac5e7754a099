package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/download"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/telegram"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/transform"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/tracing"
)

// Fetcher returns source image bytes for a URL. *download.Cache implements
// it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (download.Resource, error)
}

// Deps are the collaborators of a Pipeline. Tracker may be nil.
type Deps struct {
	Published   *published.Index
	Downloads   Fetcher
	Transformer transform.Transformer
	Uploader    Uploader
	Caller      *resilience.Caller
	ChatID      int64
	Tracker     analytics.Tracker
	Metrics     *metrics.Metrics
}

// Pipeline walks a catalog sequentially and publishes each eligible entry
// that has no published record yet. The first failure aborts the run.
type Pipeline struct {
	published   *published.Index
	downloads   Fetcher
	transformer transform.Transformer
	caller      *resilience.Caller
	chatID      int64
	strategies  map[catalog.MediaKind]strategy
	tracker     analytics.Tracker
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(deps Deps) *Pipeline {
	tracker := deps.Tracker
	if tracker == nil {
		tracker = analytics.Discard{}
	}
	caller := deps.Caller
	if caller == nil {
		caller = resilience.NewCaller(nil)
	}
	return &Pipeline{
		published:   deps.Published,
		downloads:   deps.Downloads,
		transformer: deps.Transformer,
		caller:      caller,
		chatID:      deps.ChatID,
		strategies:  strategies(deps.Uploader),
		tracker:     tracker,
		metrics:     deps.Metrics,
		logger:      slog.Default().With("component", "ingestion"),
	}
}

// Run publishes every eligible entry of cat in catalog order. Entries with a
// published record are skipped without any network traffic. The returned
// error is a *StageError for entry failures.
func (p *Pipeline) Run(ctx context.Context, cat *catalog.Catalog) (Summary, error) {
	start := time.Now()
	var summary Summary
	p.logger.Info("ingestion run started", "entries", cat.Len())

	for entry := range cat.Eligible() {
		summary.Eligible++
		done, err := p.published.IsPublished(ctx, entry.ID)
		if err != nil {
			return p.fail(summary, start, entry, StageLookup, err)
		}
		if done {
			summary.Skipped++
			p.metrics.EmotesSkippedTotal.Inc()
			p.tracker.Track(analytics.PublishEvent{
				Type:      analytics.EventPublish,
				EmoteID:   entry.ID,
				Ref:       entry.Ref,
				Kind:      entry.Kind.String(),
				Skipped:   true,
				Timestamp: time.Now().UTC(),
			})
			continue
		}
		if stage, err := p.publish(ctx, entry); err != nil {
			return p.fail(summary, start, entry, stage, err)
		}
		summary.Published++
	}

	summary.Duration = time.Since(start)
	p.logger.Info("ingestion run finished",
		"eligible", summary.Eligible,
		"published", summary.Published,
		"skipped", summary.Skipped,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func (p *Pipeline) fail(summary Summary, start time.Time, entry catalog.Entry, stage Stage, err error) (Summary, error) {
	summary.Duration = time.Since(start)
	p.metrics.IngestionErrorsTotal.WithLabelValues(string(stage)).Inc()
	p.logger.Error("ingestion run aborted",
		"ref", entry.Ref,
		"emote_id", entry.ID,
		"stage", stage,
		"url", entry.SourceURL,
		"published", summary.Published,
		"skipped", summary.Skipped,
		"error", err,
	)
	return summary, &StageError{Ref: entry.Ref, ID: entry.ID, Stage: stage, Err: err}
}

// publish takes one entry through download, transform, upload and record.
// It returns the stage that failed.
func (p *Pipeline) publish(ctx context.Context, entry catalog.Entry) (stage Stage, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "ingest_emote", "")
	span.SetAttr("emote_id", entry.ID)
	span.SetAttr("ref", entry.Ref)
	span.SetAttr("kind", entry.Kind.String())
	defer func() {
		if err != nil {
			span.Fail(err)
			span.SetAttr("stage", string(stage))
		}
		span.End()
		span.Log()
	}()

	_, dlSpan := tracing.StartChildSpan(ctx, "download")
	res, err := p.downloads.Fetch(ctx, entry.SourceURL)
	if err == nil {
		dlSpan.SetAttr("size", len(res.Data))
		dlSpan.SetAttr("content_type", res.ContentType)
	}
	dlSpan.End()
	if err != nil {
		return StageDownload, err
	}

	_, txSpan := tracing.StartChildSpan(ctx, "transform")
	format, err := transform.FormatFromContentType(res.ContentType)
	if err != nil {
		txSpan.End()
		return StageTransform, err
	}
	data, err := p.transformer.Transform(ctx, res.Data, format)
	txSpan.End()
	if err != nil {
		return StageTransform, err
	}

	sender, ok := p.strategies[entry.Kind]
	if !ok {
		return StageUpload, fmt.Errorf("no upload strategy for media kind %s", entry.Kind)
	}
	_, upSpan := tracing.StartChildSpan(ctx, "upload")
	upload := telegram.Upload{
		ChatID:   p.chatID,
		Filename: entry.ID + format.Extension(),
		Data:     data,
		Caption:  entry.Name,
	}
	fileRef, err := resilience.Invoke(ctx, p.caller, sender.operation(), func(ctx context.Context) (string, error) {
		return sender.send(ctx, upload)
	})
	upSpan.End()
	if err != nil {
		return StageUpload, err
	}

	if err := p.published.RecordPublished(ctx, entry.ID, fileRef); err != nil {
		return StageRecord, err
	}

	p.metrics.EmotesPublishedTotal.WithLabelValues(entry.Kind.String()).Inc()
	p.tracker.Track(analytics.PublishEvent{
		Type:      analytics.EventPublish,
		EmoteID:   entry.ID,
		Ref:       entry.Ref,
		Kind:      entry.Kind.String(),
		SizeBytes: len(data),
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
		TraceID:   span.TraceID,
	})
	p.logger.Info("emote published",
		"ref", entry.Ref,
		"emote_id", entry.ID,
		"name", entry.Name,
		"kind", entry.Kind.String(),
		"file_id", fileRef,
	)
	return "", nil
}
