package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBody = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

func newCDN(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newCache(store kvstore.Store) (*Cache, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return New(store, NewClient(2), "emote-relay-test", m), m
}

func TestFetchCachesAfterFirstRequest(t *testing.T) {
	srv, hits := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "emote-relay-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	cache, m := newCache(kvstore.NewMemory())
	ctx := context.Background()
	url := srv.URL + "/emojis/1.png?size=128"

	first, err := cache.Fetch(ctx, url)
	require.NoError(t, err)
	second, err := cache.Fetch(ctx, url)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, pngBody, first.Data)
	assert.Equal(t, first, second)
	assert.Equal(t, "image/png", second.ContentType)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadCacheMisses))
}

func TestFetchPersistsAcrossCacheInstances(t *testing.T) {
	srv, hits := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	store := kvstore.NewMemory()
	ctx := context.Background()

	first, _ := newCache(store)
	_, err := first.Fetch(ctx, srv.URL+"/a.png")
	require.NoError(t, err)

	restarted, _ := newCache(store)
	res, err := restarted.Fetch(ctx, srv.URL+"/a.png")
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, pngBody, res.Data)

	stored, err := store.Get(ctx, []byte("download:"+srv.URL+"/a.png:file_type"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", string(stored))
}

func TestFetchKeysOnExactURL(t *testing.T) {
	srv, hits := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	cache, _ := newCache(kvstore.NewMemory())
	ctx := context.Background()

	_, err := cache.Fetch(ctx, srv.URL+"/a.png")
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, srv.URL+"/a.png?")
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load())
}

func TestFetchNon2xxIsRemoteError(t *testing.T) {
	srv, _ := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	store := kvstore.NewMemory()
	cache, _ := newCache(store)

	_, err := cache.Fetch(context.Background(), srv.URL+"/missing.png")
	require.ErrorIs(t, err, apperrors.ErrRemote)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
	assert.Contains(t, err.Error(), "404 Not Found")
	assert.Equal(t, 0, store.Len(), "failed downloads must not be cached")
}

func TestFetchDefaultsContentType(t *testing.T) {
	srv, _ := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x01, 0x02})
	})
	cache, _ := newCache(kvstore.NewMemory())

	res, err := cache.Fetch(context.Background(), srv.URL+"/blob")
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, res.ContentType)
}

func TestFetchIgnoresHalfWrittenEntry(t *testing.T) {
	srv, hits := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	store := kvstore.NewMemory()
	ctx := context.Background()
	url := srv.URL + "/half.png"
	require.NoError(t, store.Set(ctx, typeKey(url), []byte("image/png")))

	cache, _ := newCache(store)
	res, err := cache.Fetch(ctx, url)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, pngBody, res.Data)
}

func TestFetchCollapsesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	srv, hits := newCDN(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBody)
	})
	cache, _ := newCache(kvstore.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cache.Fetch(context.Background(), srv.URL+"/same.png")
			assert.NoError(t, err)
			assert.Equal(t, pngBody, res.Data)
		}()
	}
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, hits.Load(), int64(4))
	assert.GreaterOrEqual(t, hits.Load(), int64(1))
}
