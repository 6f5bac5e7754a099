package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/search"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/telegram"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	queryID string
	results []telegram.InlineQueryResult
	opts    telegram.AnswerOptions
}

type fakeAnswerer struct {
	mu      sync.Mutex
	answers []answer
	errs    []error
}

func (f *fakeAnswerer) AnswerInlineQuery(_ context.Context, queryID string, results []telegram.InlineQueryResult, opts telegram.AnswerOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.answers = append(f.answers, answer{queryID: queryID, results: results, opts: opts})
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *eventRecorder) Track(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := event.(analytics.SearchEvent); ok {
		r.events = append(r.events, e)
	}
}

func newIndex(t *testing.T, n int) *search.Index {
	t.Helper()
	idx := published.NewIndex(kvstore.NewMemory())
	entries := make([]catalog.Entry, 0, n)
	for i := 0; i < n; i++ {
		kind := catalog.Static
		if i%2 == 1 {
			kind = catalog.Animated
		}
		e := catalog.Entry{ID: fmt.Sprint(i), Name: fmt.Sprintf("kek%d", i), GuildName: "lul", Kind: kind, Safe: true}
		entries = append(entries, e)
		require.NoError(t, idx.RecordPublished(context.Background(), e.ID, "file-"+e.ID))
	}
	return search.NewIndex(catalog.New(entries), idx, nil)
}

func post(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInlineQueryIsAnswered(t *testing.T) {
	ans := &fakeAnswerer{}
	events := &eventRecorder{}
	h := NewWebhook(newIndex(t, 2), ans, Options{Tracker: events})

	rec := post(t, h, `{"update_id":1,"inline_query":{"id":"q-1","from":{"id":5,"is_bot":false,"first_name":"a"},"query":"KEK","offset":""}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ans.answers, 1)
	got := ans.answers[0]
	assert.Equal(t, "q-1", got.queryID)
	assert.Equal(t, telegram.AnswerOptions{CacheTime: 0, IsPersonal: false, NextOffset: "1"}, got.opts)
	assert.Equal(t, []telegram.InlineQueryResult{
		{Type: "photo", ID: "emote:0", PhotoFileID: "file-0", Title: "kek0", Caption: "kek0"},
		{Type: "gif", ID: "emote:1", GIFFileID: "file-1", Title: "kek1", Caption: "kek1"},
	}, got.results)

	require.Len(t, events.events, 1)
	assert.Equal(t, analytics.SourceInline, events.events[0].Source)
	assert.Equal(t, 2, events.events[0].Returned)
}

func TestInlineQueryOffsetSelectsPage(t *testing.T) {
	ans := &fakeAnswerer{}
	h := NewWebhook(newIndex(t, 60), ans, Options{})

	rec := post(t, h, `{"update_id":2,"inline_query":{"id":"q-2","query":"kek","offset":"1"}}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ans.answers, 1)
	assert.Len(t, ans.answers[0].results, 10)
	assert.Equal(t, "emote:50", ans.answers[0].results[0].ID)
	assert.Equal(t, "2", ans.answers[0].opts.NextOffset)
}

func TestNonInlineUpdatesAreIgnored(t *testing.T) {
	ans := &fakeAnswerer{}
	h := NewWebhook(newIndex(t, 1), ans, Options{})

	rec := post(t, h, `{"update_id":3,"message":{"message_id":1,"text":"hi"}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ans.answers)
}

func TestMalformedUpdate(t *testing.T) {
	h := NewWebhook(newIndex(t, 1), &fakeAnswerer{}, Options{})
	rec := post(t, h, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSecretTokenIsEnforced(t *testing.T) {
	ans := &fakeAnswerer{}
	h := NewWebhook(newIndex(t, 1), ans, Options{Secret: "s3cret"})
	body := `{"update_id":4,"inline_query":{"id":"q","query":"","offset":""}}`

	assert.Equal(t, http.StatusUnauthorized, post(t, h, body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, h, body, map[string]string{SecretHeader: "nope"}).Code)
	assert.Equal(t, http.StatusOK, post(t, h, body, map[string]string{SecretHeader: "s3cret"}).Code)
	assert.Len(t, ans.answers, 1)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewWebhook(newIndex(t, 1), &fakeAnswerer{}, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestThrottledAnswerIsRetried(t *testing.T) {
	var waits []time.Duration
	ans := &fakeAnswerer{errs: []error{
		&telegram.RateLimitError{Err: &telegram.Error{Method: "answerInlineQuery", Code: 429}, After: time.Second},
	}}
	caller := resilience.NewCaller(resilience.NewBoundedPolicy(resilience.BoundedPolicy{MaxAttempts: 2}),
		resilience.WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}))
	h := NewWebhook(newIndex(t, 1), ans, Options{Caller: caller})

	rec := post(t, h, `{"update_id":5,"inline_query":{"id":"q","query":"kek","offset":""}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ans.answers, 1)
	require.Len(t, waits, 1)
	assert.GreaterOrEqual(t, waits[0], time.Second)
}

func TestExpiredQueryIsNotAnError(t *testing.T) {
	ans := &fakeAnswerer{errs: []error{
		&telegram.Error{Method: "answerInlineQuery", Code: 400, Description: "Bad Request: query is too old"},
	}}
	h := NewWebhook(newIndex(t, 1), ans, Options{})

	rec := post(t, h, `{"update_id":6,"inline_query":{"id":"q","query":"kek","offset":""}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
