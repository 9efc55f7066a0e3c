package content

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/internal/broadcast"
	"github.com/campaignhub/backend/internal/infrastructure/cache"
	"github.com/campaignhub/backend/repository"
	"github.com/campaignhub/backend/usecase"
)

// fakeRemote is an in-memory EntityRepository with a failure switch so tests
// can take the remote store down mid-flight.
type fakeRemote struct {
	mu    sync.Mutex
	items map[string]map[string]domain.Entity
	fail  bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: make(map[string]map[string]domain.Entity)}
}

func (f *fakeRemote) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeRemote) bucket(desc domain.Descriptor) map[string]domain.Entity {
	if f.items[desc.Name] == nil {
		f.items[desc.Name] = make(map[string]domain.Entity)
	}
	return f.items[desc.Name]
}

func (f *fakeRemote) List(_ context.Context, desc domain.Descriptor, _ repository.EntityFilter) ([]domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, domain.ErrRemoteUnavailable
	}
	out := make([]domain.Entity, 0, len(f.bucket(desc)))
	for _, item := range f.bucket(desc) {
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortKey(desc.SortField) > out[j].SortKey(desc.SortField)
	})
	return out, nil
}

func (f *fakeRemote) GetByID(_ context.Context, desc domain.Descriptor, id string) (*domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, domain.ErrRemoteUnavailable
	}
	if item, ok := f.bucket(desc)[id]; ok {
		out := item
		return &out, nil
	}
	return nil, domain.ErrEntityNotFound
}

func (f *fakeRemote) Upsert(_ context.Context, desc domain.Descriptor, entity *domain.Entity) (*domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, domain.ErrRemoteUnavailable
	}
	stored := *entity
	if prev, ok := f.bucket(desc)[entity.ID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	f.bucket(desc)[entity.ID] = stored
	out := stored
	return &out, nil
}

func (f *fakeRemote) Delete(_ context.Context, desc domain.Descriptor, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.ErrRemoteUnavailable
	}
	if _, ok := f.bucket(desc)[id]; !ok {
		return domain.ErrEntityNotFound
	}
	delete(f.bucket(desc), id)
	return nil
}

func (f *fakeRemote) IncrementCounter(_ context.Context, desc domain.Descriptor, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.ErrRemoteUnavailable
	}
	item, ok := f.bucket(desc)[id]
	if !ok {
		return domain.ErrEntityNotFound
	}
	item.Views++
	f.bucket(desc)[id] = item
	return nil
}

// fakeSink records pending enqueues without any persistence.
type fakeSink struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
}

func (f *fakeSink) EnqueueUpsert(_ context.Context, _ string, entity *domain.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, entity.ID)
	return nil
}

func (f *fakeSink) EnqueueDelete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeSink) PendingCount(string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts) + len(f.deletes)
}

func (f *fakeSink) Drain(context.Context, string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drained := len(f.upserts) + len(f.deletes)
	f.upserts = nil
	f.deletes = nil
	return drained, nil
}

func setupService(t *testing.T, remote repository.EntityRepository, bus broadcast.Broadcaster, sink *fakeSink) *Service {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var pending usecase.PendingSink
	if sink != nil {
		pending = sink
	}

	svc := New(domain.Descriptor{Name: "news"}, store, remote, bus, pending, zap.NewNop())
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)
	return svc
}

func newsEntity(id, date, title string) *domain.Entity {
	return &domain.Entity{
		ID:     id,
		Fields: map[string]any{"date": date, "title": title},
	}
}

func TestUpsertThenGetByID(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	saved, err := svc.Upsert(ctx, newsEntity("", "2024-03-01", "hello"))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := svc.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "hello", got.Fields["title"])
	assert.Equal(t, "2024-03-01", got.Fields["date"])
}

func TestUpsert_SameIDReplacesInPlace(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "v1"))
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "v2"))
	require.NoError(t, err)

	items := svc.LocalList()
	require.Len(t, items, 1)
	assert.Equal(t, "v2", items[0].Fields["title"])
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "created_at must survive replacement")
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestUpsert_NoFieldMerge(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, &domain.Entity{
		ID:     "n1",
		Fields: map[string]any{"date": "2024-03-01", "title": "full", "body": "text"},
	})
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, &domain.Entity{
		ID:     "n1",
		Fields: map[string]any{"title": "trimmed"},
	})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "trimmed", got.Fields["title"])
	assert.NotContains(t, got.Fields, "body")
	assert.NotContains(t, got.Fields, "date")
}

func TestLocalList_SortsBySortFieldDescending(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("old", "2024-01-01", "old"))
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, newsEntity("new", "2024-06-01", "new"))
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, newsEntity("mid", "2024-03-01", "mid"))
	require.NoError(t, err)

	items := svc.LocalList()
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)
	assert.Equal(t, "old", items[2].ID)
}

func TestDelete_IsIdempotent(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "n1"))
	assert.Empty(t, svc.LocalList())

	// Second delete of the same id, and a delete of an unknown id, are no-ops.
	require.NoError(t, svc.Delete(ctx, "n1"))
	require.NoError(t, svc.Delete(ctx, "never-existed"))
	assert.Empty(t, svc.LocalList())
}

func TestUpsert_ConcurrentWritersAllSurvive(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := svc.Upsert(ctx, newsEntity(fmt.Sprintf("n%02d", n), "2024-03-01", "hello"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Every acknowledged write must still be in the collection.
	items := svc.LocalList()
	require.Len(t, items, writers)
	seen := make(map[string]bool, writers)
	for _, item := range items {
		seen[item.ID] = true
	}
	assert.Len(t, seen, writers)
}

func TestConcurrentUpsertsAndDeletesConverge(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	const pairs = 20
	for i := 0; i < pairs; i++ {
		_, err := svc.Upsert(ctx, newsEntity(fmt.Sprintf("old%02d", i), "2024-01-01", "old"))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(pairs * 2)
	for i := 0; i < pairs; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := svc.Upsert(ctx, newsEntity(fmt.Sprintf("new%02d", n), "2024-06-01", "new"))
			assert.NoError(t, err)
		}(i)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, svc.Delete(ctx, fmt.Sprintf("old%02d", n)))
		}(i)
	}
	wg.Wait()

	items := svc.LocalList()
	require.Len(t, items, pairs)
	for _, item := range items {
		assert.Equal(t, "new", item.Fields["title"])
	}
}

func TestLifecycle_CreateListDeleteGet(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)
	ctx := context.Background()

	n1, err := svc.Upsert(ctx, newsEntity("", "2024-01-01", "first"))
	require.NoError(t, err)
	n2, err := svc.Upsert(ctx, newsEntity("", "2024-06-01", "second"))
	require.NoError(t, err)

	items, err := svc.List(ctx, repository.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, n2.ID, items[0].ID)
	assert.Equal(t, n1.ID, items[1].ID)

	require.NoError(t, svc.Delete(ctx, n1.ID))

	items, err = svc.List(ctx, repository.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, n2.ID, items[0].ID)

	_, err = svc.GetByID(ctx, n1.ID)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestList_RemoteWinsOverCache(t *testing.T) {
	remote := newFakeRemote()
	svc := setupService(t, remote, broadcast.NewBus(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("shared", "2024-03-01", "hello"))
	require.NoError(t, err)

	// Seed the remote with a record the cache has never seen. List must
	// return the remote's view wholesale, never a merge.
	_, err = remote.Upsert(ctx, svc.Descriptor(), newsEntity("remote-only", "2024-06-01", "fresh"))
	require.NoError(t, err)

	items, err := svc.List(ctx, repository.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "remote-only", items[0].ID)
}

func TestList_FallsBackToCacheWhenRemoteDown(t *testing.T) {
	remote := newFakeRemote()
	svc := setupService(t, remote, broadcast.NewBus(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)

	remote.setFail(true)

	items, err := svc.List(ctx, repository.EntityFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)

	got, err := svc.GetByID(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Fields["title"])
}

func TestUpsert_RemoteDownQueuesPendingWrite(t *testing.T) {
	remote := newFakeRemote()
	remote.setFail(true)
	sink := &fakeSink{}
	svc := setupService(t, remote, broadcast.NewBus(), sink)
	ctx := context.Background()

	saved, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err, "remote failure must not fail the write")

	assert.Equal(t, []string{"n1"}, sink.upserts)
	assert.Equal(t, 1, svc.PendingCount())

	// The local copy is immediately readable despite the remote being down.
	got, err := svc.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Fields["title"])
}

func TestDelete_RemoteDownQueuesPendingDelete(t *testing.T) {
	remote := newFakeRemote()
	sink := &fakeSink{}
	svc := setupService(t, remote, broadcast.NewBus(), sink)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)

	remote.setFail(true)
	require.NoError(t, svc.Delete(ctx, "n1"))

	assert.Empty(t, svc.LocalList())
	assert.Equal(t, []string{"n1"}, sink.deletes)
}

func TestSiblingServicesConvergeThroughBroadcast(t *testing.T) {
	remote := newFakeRemote()
	bus := broadcast.NewBus()
	writer := setupService(t, remote, bus, nil)
	reader := setupService(t, remote, bus, nil)
	ctx := context.Background()

	saved, err := writer.Upsert(ctx, newsEntity("", "2024-03-01", "hello"))
	require.NoError(t, err)

	items := reader.LocalList()
	require.Len(t, items, 1)
	assert.Equal(t, saved.ID, items[0].ID)

	// Redelivering the same event must converge on the same state.
	require.NoError(t, bus.Publish(ctx, writer.Descriptor().Topic(),
		domain.NewEntityUpdated("news", writer.Origin(), saved)))
	assert.Len(t, reader.LocalList(), 1)

	require.NoError(t, writer.Delete(ctx, saved.ID))
	assert.Empty(t, reader.LocalList())
}

func TestDelete_RemoteOnlyRecordStillAnnounced(t *testing.T) {
	remote := newFakeRemote()
	bus := broadcast.NewBus()
	svc := setupService(t, remote, bus, nil)
	ctx := context.Background()

	// The record exists only remotely; this process's cache is cold.
	_, err := remote.Upsert(ctx, svc.Descriptor(), newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)

	var events []domain.Event
	_, err = bus.Subscribe(svc.Descriptor().Topic(), "observer", func(ev domain.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "n1"))

	_, err = remote.GetByID(ctx, svc.Descriptor(), "n1")
	require.Error(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventEntityDeleted, events[0].Type)

	// Once the record is gone everywhere, repeating the delete stays silent.
	require.NoError(t, svc.Delete(ctx, "n1"))
	assert.Len(t, events, 1)
}

func TestAnnounce_TouchesUpdateTrigger(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := New(domain.Descriptor{Name: "news"}, store, nil, broadcast.NewBus(), nil, zap.NewNop())
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)

	before := time.Now().UnixMilli()
	_, err = svc.Upsert(context.Background(), newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)

	stamp := store.ReadTrigger(svc.Descriptor().TriggerKey())
	assert.GreaterOrEqual(t, stamp, before)
}

func TestIncrementView_CountsEveryConcurrentHit(t *testing.T) {
	remote := newFakeRemote()
	svc := setupService(t, remote, broadcast.NewBus(), nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)

	const hits = 50
	var wg sync.WaitGroup
	wg.Add(hits)
	for i := 0; i < hits; i++ {
		go func() {
			defer wg.Done()
			svc.IncrementView(ctx, "n1")
		}()
	}
	wg.Wait()

	got, err := remote.GetByID(ctx, svc.Descriptor(), "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(hits), got.Views)
}

func TestSettingsRoundTripAndBroadcast(t *testing.T) {
	bus := broadcast.NewBus()
	svc := setupService(t, nil, bus, nil)
	ctx := context.Background()

	_, ok := svc.Settings()
	assert.False(t, ok)

	var events []domain.Event
	_, err := bus.Subscribe(svc.Descriptor().Topic(), "observer", func(ev domain.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateSettings(ctx, json.RawMessage(`{"per_page":12}`)))

	blob, ok := svc.Settings()
	require.True(t, ok)
	assert.JSONEq(t, `{"per_page":12}`, string(blob))

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSettingsUpdated, events[0].Type)
}

func TestResync_DrainsAndRefreshes(t *testing.T) {
	remote := newFakeRemote()
	remote.setFail(true)
	sink := &fakeSink{}
	svc := setupService(t, remote, broadcast.NewBus(), sink)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, newsEntity("n1", "2024-03-01", "hello"))
	require.NoError(t, err)
	require.Equal(t, 1, svc.PendingCount())

	remote.setFail(false)
	drained, err := svc.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, drained)
	assert.Zero(t, svc.PendingCount())
}

func TestGetByID_RemoteNotFoundIsAuthoritative(t *testing.T) {
	remote := newFakeRemote()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := New(domain.Descriptor{Name: "news"}, store, remote, broadcast.NewBus(), nil, zap.NewNop())

	// A stale cached record must not shadow a remote-confirmed absence.
	require.NoError(t, store.WriteCollection(svc.Descriptor().CollectionKey(),
		[]domain.Entity{{ID: "stale", Fields: map[string]any{"title": "ghost"}}}))

	_, err = svc.GetByID(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestUpsert_NilEntityRejected(t *testing.T) {
	svc := setupService(t, nil, broadcast.NewBus(), nil)

	_, err := svc.Upsert(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}
