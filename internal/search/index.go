// Package search answers paginated, literal substring queries over the
// published part of the catalog.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
)

// Result is one published emote.
type Result struct {
	ID            string            `json:"id"`
	EmoteID       string            `json:"emote_id"`
	Title         string            `json:"title"`
	Kind          catalog.MediaKind `json:"-"`
	KindName      string            `json:"kind"`
	FileReference string            `json:"file_reference"`
}

// Page is one page of results. NextPageToken is always set; an empty Results
// slice is how callers learn they ran past the end.
type Page struct {
	Query         string   `json:"query"`
	Page          int      `json:"page"`
	Results       []Result `json:"results"`
	NextPageToken string   `json:"next_page_token"`
}

// Index is safe for concurrent use and for use while an ingestion run is
// appending published records.
type Index struct {
	catalog   *catalog.Catalog
	published *published.Index
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewIndex creates an Index. m may be nil.
func NewIndex(cat *catalog.Catalog, idx *published.Index, m *metrics.Metrics) *Index {
	return &Index{
		catalog:   cat,
		published: idx,
		metrics:   m,
		logger:    slog.Default().With("component", "search-index"),
	}
}

// Compile turns user text into a case-insensitive literal matcher.
func Compile(query string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
}

// Search scans eligible entries in catalog order, keeping those whose name
// or guild name contains query and that have a published record, and returns
// the page pageToken selects.
func (i *Index) Search(ctx context.Context, query, pageToken string) (*Page, error) {
	start := time.Now()
	page := DecodePageToken(pageToken)
	skip := page * PageSize
	matcher := Compile(query)

	results := make([]Result, 0, PageSize)
	matched := 0
	for entry := range i.catalog.Eligible() {
		if len(results) >= PageSize {
			break
		}
		if !matcher.MatchString(entry.Name) && !matcher.MatchString(entry.GuildName) {
			continue
		}
		fileRef, ok, err := i.published.Lookup(ctx, entry.ID)
		if err != nil {
			i.observe("error", start, 0)
			return nil, fmt.Errorf("searching %q: %w", query, err)
		}
		if !ok {
			continue
		}
		if matched >= skip {
			results = append(results, Result{
				ID:            "emote:" + entry.ID,
				EmoteID:       entry.ID,
				Title:         entry.Name,
				Kind:          entry.Kind,
				KindName:      entry.Kind.String(),
				FileReference: fileRef,
			})
		}
		matched++
	}

	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	i.observe(resultType, start, len(results))

	return &Page{
		Query:         query,
		Page:          page,
		Results:       results,
		NextPageToken: EncodePageToken(page + 1),
	}, nil
}

func (i *Index) observe(resultType string, start time.Time, n int) {
	if i.metrics == nil {
		return
	}
	i.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	i.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	if resultType != "error" {
		i.metrics.SearchResultsCount.Observe(float64(n))
	}
}
