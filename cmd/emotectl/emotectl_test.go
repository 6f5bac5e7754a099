package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/published"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
)

func installEnv(t *testing.T, entries []catalog.Entry) *environment {
	t.Helper()
	store := kvstore.NewMemory()
	e := &environment{
		catalog:   catalog.New(entries),
		store:     store,
		published: published.NewIndex(store),
	}
	env = e
	t.Cleanup(func() { env = nil })
	return e
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	jsonOutput, searchPage, statusPending = false, "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func entries(n int) []catalog.Entry {
	out := make([]catalog.Entry, n)
	for i := range out {
		out[i] = catalog.Entry{
			Ref:       fmt.Sprintf("ref-%d", i),
			ID:        fmt.Sprintf("%d", 1000+i),
			Name:      fmt.Sprintf("pog%d", i),
			SourceURL: fmt.Sprintf("https://cdn.example/%d.png", i),
			Safe:      true,
		}
	}
	return out
}

func TestStatusCountsPublished(t *testing.T) {
	list := entries(3)
	list = append(list, catalog.Entry{ID: "9", Name: "nsfw", SourceURL: "https://cdn.example/9.png"})
	e := installEnv(t, list)
	require.NoError(t, e.published.RecordPublished(context.Background(), "1000", "file-a"))

	out := execute(t, "status", "--json", "--pending")

	var status ingestionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 4, status.Entries)
	assert.Equal(t, 3, status.Eligible)
	assert.Equal(t, 1, status.Published)
	require.Len(t, status.Pending, 2)
	assert.Equal(t, "1001", status.Pending[0].ID)
}

func TestSearchShowsPublishedOnly(t *testing.T) {
	e := installEnv(t, entries(2))
	require.NoError(t, e.published.RecordPublished(context.Background(), "1001", "file-b"))

	out := execute(t, "search", "POG")

	assert.Contains(t, out, "pog1")
	assert.Contains(t, out, "emote:1001")
	assert.NotContains(t, out, "pog0")
	assert.NotContains(t, out, "Next page")
}

func TestSearchPastLastPage(t *testing.T) {
	installEnv(t, entries(1))

	out := execute(t, "search", "pog", "--page", "z")

	assert.Contains(t, out, "No results on page 35")
}

func TestCacheReportsHalfWrittenEntryAsMissing(t *testing.T) {
	e := installEnv(t, nil)
	ctx := context.Background()
	url := "https://cdn.example/1.png"
	require.NoError(t, e.store.Set(ctx, kvstore.Key("download", url, "file_type"), []byte("image/png")))

	assert.Contains(t, execute(t, "cache", url), "not cached")

	require.NoError(t, e.store.Set(ctx, kvstore.Key("download", url, "data"), []byte("abc")))
	assert.Contains(t, execute(t, "cache", url), "3 bytes, image/png")
}
