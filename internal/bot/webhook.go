// Package bot answers inline queries delivered to the Telegram webhook with
// cached-file results from the search index.
package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/search"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/telegram"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/resilience"
)

// SecretHeader is where Telegram echoes the secret_token given to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateSize = 1 << 20

// Answerer sends inline query answers. *telegram.Client implements it.
type Answerer interface {
	AnswerInlineQuery(ctx context.Context, queryID string, results []telegram.InlineQueryResult, opts telegram.AnswerOptions) error
}

// Searcher is the part of *search.Index the webhook uses.
type Searcher interface {
	Search(ctx context.Context, query, pageToken string) (*search.Page, error)
}

type Webhook struct {
	searcher Searcher
	answerer Answerer
	caller   *resilience.Caller
	tracker  analytics.Tracker
	secret   string
	logger   *slog.Logger
}

// Options configure a Webhook. Zero values are fine: no secret check,
// analytics discarded, and a bounded retry on throttled answers.
type Options struct {
	Secret  string
	Caller  *resilience.Caller
	Tracker analytics.Tracker
}

func NewWebhook(searcher Searcher, answerer Answerer, opts Options) *Webhook {
	if opts.Tracker == nil {
		opts.Tracker = analytics.Discard{}
	}
	if opts.Caller == nil {
		// A user is waiting on the answer; never stall it like an upload.
		opts.Caller = resilience.NewCaller(resilience.NewBoundedPolicy(resilience.BoundedPolicy{MaxAttempts: 2}))
	}
	return &Webhook{
		searcher: searcher,
		answerer: answerer,
		caller:   opts.Caller,
		tracker:  opts.Tracker,
		secret:   opts.Secret,
		logger:   slog.Default().With("component", "bot-webhook"),
	}
}

// ServeHTTP handles POST <webhook path>. Updates other than inline queries
// are acknowledged and ignored.
func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	log := logger.FromContext(r.Context())

	var update telegram.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateSize)).Decode(&update); err != nil {
		log.Warn("malformed update", "error", err)
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}
	if update.InlineQuery == nil {
		log.Debug("ignoring update", "update_id", update.UpdateID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.answer(r.Context(), update.InlineQuery); err != nil {
		log.Error("inline query failed", "update_id", update.UpdateID, "query_id", update.InlineQuery.ID, "error", err)
		http.Error(w, "inline query failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Webhook) answer(ctx context.Context, q *telegram.InlineQuery) error {
	start := time.Now()
	page, err := h.searcher.Search(ctx, q.Query, q.Offset)
	if err != nil {
		return err
	}

	results := Results(page)
	logger.FromContext(ctx).Info("inline search",
		"search", q.Query,
		"page", page.Page,
		"offset", page.Page*search.PageSize,
		"limit", search.PageSize,
		"results", len(results),
	)

	_, err = resilience.Invoke(ctx, h.caller, "answer_inline_query", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.answerer.AnswerInlineQuery(ctx, q.ID, results, telegram.AnswerOptions{
			CacheTime:  0,
			IsPersonal: false,
			NextOffset: page.NextPageToken,
		})
	})
	h.tracker.Track(analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     q.Query,
		Page:      page.Page,
		Returned:  len(results),
		LatencyMs: time.Since(start).Milliseconds(),
		Source:    analytics.SourceInline,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	if err != nil {
		var apiErr *telegram.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			// Queries older than ~10s can no longer be answered.
			logger.FromContext(ctx).Warn("inline answer rejected", "query_id", q.ID, "error", err)
			return nil
		}
		return err
	}
	return nil
}

// Results maps a search page onto cached-file inline results: static emotes
// become photos, animated ones gifs.
func Results(page *search.Page) []telegram.InlineQueryResult {
	results := make([]telegram.InlineQueryResult, 0, len(page.Results))
	for _, r := range page.Results {
		res := telegram.InlineQueryResult{
			ID:      r.ID,
			Title:   r.Title,
			Caption: r.Title,
		}
		switch r.Kind {
		case catalog.Animated:
			res.Type = telegram.ResultTypeGIF
			res.GIFFileID = r.FileReference
		default:
			res.Type = telegram.ResultTypePhoto
			res.PhotoFileID = r.FileReference
		}
		results = append(results, res)
	}
	return results
}
