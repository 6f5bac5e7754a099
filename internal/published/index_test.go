package published

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndLookup(t *testing.T) {
	store := kvstore.NewMemory()
	idx := NewIndex(store)
	ctx := context.Background()

	ok, err := idx.IsPublished(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := idx.Lookup(ctx, "42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, idx.RecordPublished(ctx, "42", "AgADfile"))

	ok, err = idx.IsPublished(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ref, found, err := idx.Lookup(ctx, "42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "AgADfile", ref)

	raw, err := store.Get(ctx, []byte("emote_uploaded_file_id:42"))
	require.NoError(t, err)
	assert.Equal(t, "AgADfile", string(raw))
}

func TestRecordSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/emotes.db"

	store, err := kvstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewIndex(store).RecordPublished(ctx, "7", "file-7"))
	require.NoError(t, store.Close())

	reopened, err := kvstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	ref, found, err := NewIndex(reopened).Lookup(ctx, "7")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "file-7", ref)
}
