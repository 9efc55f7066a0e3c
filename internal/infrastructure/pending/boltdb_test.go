package pending

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "pending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueAndGetBatch(t *testing.T) {
	q := setupQueue(t)

	require.NoError(t, q.Enqueue(Item{
		Domain:    "news",
		Operation: OperationUpsert,
		EntityID:  "e1",
		Data:      json.RawMessage(`{"id":"e1"}`),
	}))

	items, err := q.GetBatch("news", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, OperationUpsert, items[0].Operation)
	assert.Equal(t, "e1", items[0].EntityID)
	assert.False(t, items[0].Timestamp.IsZero())
}

func TestGetBatch_OldestFirst(t *testing.T) {
	q := setupQueue(t)

	base := time.Now().Add(-time.Minute)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, q.Enqueue(Item{
			Domain:    "news",
			Operation: OperationDelete,
			EntityID:  id,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	items, err := q.GetBatch("news", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].EntityID)
	assert.Equal(t, "second", items[1].EntityID)
}

func TestGetBatch_FiltersByDomain(t *testing.T) {
	q := setupQueue(t)

	require.NoError(t, q.Enqueue(Item{Domain: "news", Operation: OperationDelete, EntityID: "n1"}))
	require.NoError(t, q.Enqueue(Item{Domain: "achievements", Operation: OperationDelete, EntityID: "a1"}))

	items, err := q.GetBatch("achievements", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].EntityID)

	all, err := q.GetBatch("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRemove(t *testing.T) {
	q := setupQueue(t)

	require.NoError(t, q.Enqueue(Item{Domain: "news", Operation: OperationDelete, EntityID: "n1"}))
	items, err := q.GetBatch("news", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, q.Remove(items[0]))

	size, err := q.Size("news")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRequeue_BumpsTimestampAndRetries(t *testing.T) {
	q := setupQueue(t)

	require.NoError(t, q.Enqueue(Item{
		Domain:    "news",
		Operation: OperationUpsert,
		EntityID:  "n1",
		Timestamp: time.Now().Add(-time.Hour),
	}))

	items, err := q.GetBatch("news", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	require.NoError(t, q.Remove(item))
	item.Retries++
	require.NoError(t, q.Requeue(item))

	items, err = q.GetBatch("news", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)
	assert.WithinDuration(t, time.Now(), items[0].Timestamp, 5*time.Second)
}

func TestSize_PerDomain(t *testing.T) {
	q := setupQueue(t)

	require.NoError(t, q.Enqueue(Item{Domain: "news", Operation: OperationDelete, EntityID: "n1"}))
	require.NoError(t, q.Enqueue(Item{Domain: "news", Operation: OperationDelete, EntityID: "n2"}))
	require.NoError(t, q.Enqueue(Item{Domain: "achievements", Operation: OperationDelete, EntityID: "a1"}))

	size, err := q.Size("news")
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	total, err := q.Size("")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestCleanup(t *testing.T) {
	q := setupQueue(t)

	require.NoError(t, q.Enqueue(Item{Domain: "news", Operation: OperationDelete, EntityID: "old", Timestamp: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, q.Enqueue(Item{Domain: "news", Operation: OperationDelete, EntityID: "fresh"}))

	require.NoError(t, q.Cleanup(time.Now().Add(-24*time.Hour)))

	items, err := q.GetBatch("news", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].EntityID)
}

func TestClosedQueue(t *testing.T) {
	var q *Queue
	require.NoError(t, q.Close())
	assert.Error(t, q.Enqueue(Item{Domain: "news"}))
}
