package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteReadCollection(t *testing.T) {
	store := setupStore(t)

	items := []domain.Entity{
		{ID: "a", Fields: map[string]any{"title": "first"}, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: "b", Fields: map[string]any{"title": "second"}, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	require.NoError(t, store.WriteCollection("news", items))

	got := store.ReadCollection("news")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "first", got[0].Fields["title"])
	assert.Equal(t, "b", got[1].ID)
}

func TestReadCollection_Missing(t *testing.T) {
	store := setupStore(t)
	assert.Empty(t, store.ReadCollection("nope"))
}

func TestReadCollection_CorruptDataReadsAsEmpty(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.WriteRaw("news", []byte("{not json[")))
	assert.Empty(t, store.ReadCollection("news"))
}

func TestWriteCollection_ReplacesPriorValue(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.WriteCollection("news", []domain.Entity{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, store.WriteCollection("news", []domain.Entity{{ID: "c"}}))

	got := store.ReadCollection("news")
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestTouchTrigger(t *testing.T) {
	store := setupStore(t)

	assert.Zero(t, store.ReadTrigger("news-update-trigger"))

	before := time.Now().UnixMilli()
	require.NoError(t, store.TouchTrigger("news-update-trigger"))

	stamp := store.ReadTrigger("news-update-trigger")
	assert.GreaterOrEqual(t, stamp, before)
}

func TestAspects(t *testing.T) {
	store := setupStore(t)

	_, ok := store.ReadAspect("news-settings")
	assert.False(t, ok)

	require.NoError(t, store.WriteAspect("news-settings", []byte(`{"per_page":10}`)))

	blob, ok := store.ReadAspect("news-settings")
	require.True(t, ok)
	assert.JSONEq(t, `{"per_page":10}`, string(blob))
}
