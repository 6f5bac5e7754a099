// Package download fetches source images by URL and keeps the body and
// content type in the key-value store so repeat runs never touch the network.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultContentType is recorded when the origin omits Content-Type.
const DefaultContentType = "application/octet-stream"

// Resource is a fully buffered download.
type Resource struct {
	Data        []byte
	ContentType string
}

// Cache is the persistent download cache. Entries are keyed on the exact URL
// string and never expire.
type Cache struct {
	store     kvstore.Store
	client    *http.Client
	userAgent string
	group     singleflight.Group
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient returns an HTTP client with a keep-alive transport suited to
// sequential fetches from a single CDN. No overall timeout is set.
func NewClient(maxIdleConns int) *http.Client {
	if maxIdleConns <= 0 {
		maxIdleConns = 4
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: maxIdleConns,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

func New(store kvstore.Store, client *http.Client, userAgent string, m *metrics.Metrics) *Cache {
	if client == nil {
		client = NewClient(0)
	}
	return &Cache{
		store:     store,
		client:    client,
		userAgent: userAgent,
		metrics:   m,
		logger:    slog.Default().With("component", "download-cache"),
	}
}

func dataKey(url string) []byte { return kvstore.Key("download", url, "data") }

func typeKey(url string) []byte { return kvstore.Key("download", url, "file_type") }

// Fetch returns the cached body and content type for url, downloading and
// persisting them first on a miss. Concurrent calls for the same URL share
// one download.
func (c *Cache) Fetch(ctx context.Context, url string) (Resource, error) {
	if res, ok, err := c.lookup(ctx, url); err != nil {
		return Resource{}, err
	} else if ok {
		c.metrics.DownloadCacheHits.Inc()
		c.logger.Debug("download cache hit", "url", url)
		return res, nil
	}

	v, err, _ := c.group.Do(url, func() (any, error) {
		if res, ok, err := c.lookup(ctx, url); err != nil || ok {
			return res, err
		}
		c.metrics.DownloadCacheMisses.Inc()
		res, err := c.download(ctx, url)
		if err != nil {
			return Resource{}, err
		}
		if err := c.persist(ctx, url, res); err != nil {
			return Resource{}, err
		}
		return res, nil
	})
	if err != nil {
		return Resource{}, err
	}
	return v.(Resource), nil
}

// lookup trusts the cache only when both halves are present.
func (c *Cache) lookup(ctx context.Context, url string) (Resource, bool, error) {
	contentType, err := c.store.GetOptional(ctx, typeKey(url))
	if err != nil {
		return Resource{}, false, fmt.Errorf("reading cached content type for %s: %w", url, err)
	}
	if contentType == nil {
		return Resource{}, false, nil
	}
	data, err := c.store.GetOptional(ctx, dataKey(url))
	if err != nil {
		return Resource{}, false, fmt.Errorf("reading cached body for %s: %w", url, err)
	}
	if data == nil {
		c.logger.Warn("content type cached without body, refetching", "url", url)
		return Resource{}, false, nil
	}
	return Resource{Data: data, ContentType: string(contentType)}, true, nil
}

// persist writes the body before the content type, so a recorded content
// type always implies a durable body.
func (c *Cache) persist(ctx context.Context, url string, res Resource) error {
	if err := c.store.Set(ctx, dataKey(url), res.Data); err != nil {
		return fmt.Errorf("caching body for %s: %w", url, err)
	}
	if err := c.store.Set(ctx, typeKey(url), []byte(res.ContentType)); err != nil {
		return fmt.Errorf("caching content type for %s: %w", url, err)
	}
	return nil
}

func (c *Cache) download(ctx context.Context, url string) (Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Resource{}, fmt.Errorf("building request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Resource{}, apperrors.Newf(apperrors.ErrRemote, 0, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Resource{}, apperrors.Newf(apperrors.ErrRemote, resp.StatusCode, "GET %s: %s", url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Resource{}, apperrors.Newf(apperrors.ErrRemote, resp.StatusCode, "reading body of %s: %v", url, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}
	c.metrics.DownloadBytesTotal.Add(float64(len(data)))
	c.logger.Info("downloaded",
		"url", url,
		"status", resp.StatusCode,
		"content_type", contentType,
		"size", len(data),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return Resource{Data: data, ContentType: contentType}, nil
}
