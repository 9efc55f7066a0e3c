// Package content implements the per-domain entity service: the single point
// of truth composing the local cache, the remote store adapter and the change
// broadcaster. One Service instance covers one content domain; all domains
// share the same orchestration.
package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/internal/broadcast"
	"github.com/campaignhub/backend/internal/infrastructure/cache"
	"github.com/campaignhub/backend/repository"
	"github.com/campaignhub/backend/usecase"
)

// Service orchestrates reads and writes for one content domain.
//
// Write path: the local cache write must succeed or the operation fails and
// nothing is broadcast. The remote write is best effort; a failure is logged,
// queued for resync and never fails the operation. The broadcast plus the
// trigger-key touch run last.
type Service struct {
	desc    domain.Descriptor
	cache   *cache.Store
	remote  repository.EntityRepository
	bus     broadcast.Broadcaster
	pending usecase.PendingSink
	logger  *zap.Logger

	origin      string
	unsubscribe func()

	// mu serializes every read-modify-write of the cached collection. The
	// cache store only makes the individual read and write atomic; without
	// this lock two concurrent writers would both read the old collection
	// and the later write-back would erase the earlier acknowledged write.
	mu sync.Mutex
}

func New(
	desc domain.Descriptor,
	cacheStore *cache.Store,
	remote repository.EntityRepository,
	bus broadcast.Broadcaster,
	pending usecase.PendingSink,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		desc:    desc.Normalize(),
		cache:   cacheStore,
		remote:  remote,
		bus:     bus,
		pending: pending,
		logger:  logger.With(zap.String("domain", desc.Name)),
		origin:  uuid.NewString(),
	}
}

// Descriptor returns the domain this service serves.
func (s *Service) Descriptor() domain.Descriptor {
	return s.desc
}

// Origin identifies this service instance in broadcast events.
func (s *Service) Origin() string {
	return s.origin
}

// Start subscribes the service to its own topic so changes made by sibling
// processes refresh the local cache. The handler re-fetches and replaces the
// whole collection, which keeps it safe under duplicate delivery.
func (s *Service) Start() error {
	if s.bus == nil {
		return nil
	}
	unsub, err := s.bus.Subscribe(s.desc.Topic(), s.origin, s.handleEvent)
	if err != nil {
		return err
	}
	s.unsubscribe = unsub
	return nil
}

// Stop detaches the service from its topic.
func (s *Service) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// List attempts the remote store first and falls back to the local cache when
// the remote fails or is not configured. The two sources are never merged;
// whichever answers wins entirely. Order is the domain sort field descending.
func (s *Service) List(ctx context.Context, filter repository.EntityFilter) ([]domain.Entity, error) {
	if s.remote != nil {
		items, err := s.remote.List(ctx, s.desc, filter)
		if err == nil {
			return items, nil
		}
		s.logger.Warn("remote list failed, serving local cache", zap.Error(err))
	}
	return s.LocalList(), nil
}

// LocalList returns the cached collection sorted by the domain sort field
// descending. Corrupt cache data reads as empty.
func (s *Service) LocalList() []domain.Entity {
	items := s.cache.ReadCollection(s.desc.CollectionKey())
	field := s.desc.SortField
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortKey(field) > items[j].SortKey(field)
	})
	return items
}

// GetByID follows the same source precedence as List.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	if s.remote != nil {
		entity, err := s.remote.GetByID(ctx, s.desc, id)
		if err == nil {
			return entity, nil
		}
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, err
		}
		s.logger.Warn("remote get failed, serving local cache", zap.Error(err))
	}
	for _, item := range s.cache.ReadCollection(s.desc.CollectionKey()) {
		if item.ID == id {
			entity := item
			return &entity, nil
		}
	}
	return nil, domain.ErrEntityNotFound
}

// Upsert inserts or fully replaces one entity. There is no field-level merge:
// the submitted record wins wholesale. CreatedAt of an existing record is
// preserved; UpdatedAt is refreshed on every call.
func (s *Service) Upsert(ctx context.Context, entity *domain.Entity) (*domain.Entity, error) {
	if entity == nil {
		return nil, domain.ErrInvalidPayload
	}
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	s.mu.Lock()
	items := s.cache.ReadCollection(s.desc.CollectionKey())

	replaced := false
	for i := range items {
		if items[i].ID == entity.ID {
			entity.CreatedAt = items[i].CreatedAt
			entity.Touch()
			items[i] = *entity
			replaced = true
			break
		}
	}
	if !replaced {
		entity.CreatedAt = time.Time{}
		entity.Touch()
		items = append([]domain.Entity{*entity}, items...)
	}

	if err := s.cache.WriteCollection(s.desc.CollectionKey(), items); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.writeRemote(ctx, entity)
	s.announce(ctx, domain.NewEntityUpdated(s.desc.Name, s.origin, entity))

	result := *entity
	return &result, nil
}

// Delete removes an entity from both stores. Deleting an id that does not
// exist anywhere is a no-op, not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	items := s.cache.ReadCollection(s.desc.CollectionKey())

	kept := items[:0]
	removed := false
	for _, item := range items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}

	if removed {
		if err := s.cache.WriteCollection(s.desc.CollectionKey(), kept); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	remoteRemoved := false
	if s.remote != nil {
		switch err := s.remote.Delete(ctx, s.desc, id); {
		case err == nil:
			remoteRemoved = true
		case domain.IsDomainError(err, domain.ErrCodeNotFound):
		default:
			s.logger.Warn("remote delete failed, queued for resync", zap.String("id", id), zap.Error(err))
			if s.pending != nil {
				if qErr := s.pending.EnqueueDelete(ctx, s.desc.Name, id); qErr != nil {
					s.logger.Error("failed to queue pending delete", zap.Error(qErr))
				}
			}
		}
	}

	// Announce when the delete changed either store. A cold local cache must
	// not suppress the event for a record that was just removed remotely, or
	// sibling processes would keep serving it until an unrelated refresh.
	if removed || remoteRemoved {
		s.announce(ctx, domain.NewEntityDeleted(s.desc.Name, s.origin, id))
	}
	return nil
}

// IncrementView bumps the remote view counter and nothing else. The cached
// copy is allowed to go stale until the next full re-fetch; incrementing
// locally would reintroduce the read-modify-write race the server-side
// counter exists to avoid.
func (s *Service) IncrementView(ctx context.Context, id string) {
	if s.remote == nil {
		return
	}
	if err := s.remote.IncrementCounter(ctx, s.desc, id); err != nil {
		s.logger.Debug("view increment dropped", zap.String("id", id), zap.Error(err))
	}
}

// Settings returns the raw settings blob for this domain.
func (s *Service) Settings() ([]byte, bool) {
	return s.cache.ReadAspect(s.desc.AspectKey("settings"))
}

// UpdateSettings replaces the settings blob and notifies siblings.
func (s *Service) UpdateSettings(ctx context.Context, blob []byte) error {
	if err := s.cache.WriteAspect(s.desc.AspectKey("settings"), blob); err != nil {
		return err
	}
	s.announce(ctx, domain.NewSettingsUpdated(s.desc.Name, s.origin))
	return nil
}

// ReplaceCollection swaps the whole local collection (import path). Remote
// persistence is best effort per entity, as on Upsert.
func (s *Service) ReplaceCollection(ctx context.Context, items []domain.Entity) error {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].Touch()
	}
	s.mu.Lock()
	if err := s.cache.WriteCollection(s.desc.CollectionKey(), items); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	for i := range items {
		s.writeRemote(ctx, &items[i])
	}
	s.announce(ctx, domain.NewEntityUpdated(s.desc.Name, s.origin, nil))
	return nil
}

// PendingCount exposes how many writes have not reached the remote store,
// making the divergence between the two stores observable instead of silent.
func (s *Service) PendingCount() int {
	if s.pending == nil {
		return 0
	}
	return s.pending.PendingCount(s.desc.Name)
}

// Resync drains the pending queue for this domain and refreshes the local
// cache from the remote store.
func (s *Service) Resync(ctx context.Context) (int, error) {
	drained := 0
	if s.pending != nil {
		var err error
		drained, err = s.pending.Drain(ctx, s.desc.Name)
		if err != nil {
			return drained, err
		}
	}
	s.refreshFromRemote(ctx)
	s.announce(ctx, domain.NewSyncCompleted(s.desc.Name, s.origin, drained))
	return drained, nil
}

func (s *Service) writeRemote(ctx context.Context, entity *domain.Entity) {
	if s.remote == nil {
		if s.pending != nil {
			if err := s.pending.EnqueueUpsert(ctx, s.desc.Name, entity); err != nil {
				s.logger.Error("failed to queue pending upsert", zap.Error(err))
			}
		}
		return
	}
	if _, err := s.remote.Upsert(ctx, s.desc, entity); err != nil {
		s.logger.Warn("remote upsert failed, queued for resync",
			zap.String("id", entity.ID),
			zap.Error(err))
		if s.pending != nil {
			if qErr := s.pending.EnqueueUpsert(ctx, s.desc.Name, entity); qErr != nil {
				s.logger.Error("failed to queue pending upsert", zap.Error(qErr))
			}
		}
	}
}

func (s *Service) announce(ctx context.Context, ev domain.Event) {
	if s.bus != nil {
		if err := s.bus.Publish(ctx, s.desc.Topic(), ev); err != nil {
			s.logger.Warn("broadcast failed", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
	if err := s.cache.TouchTrigger(s.desc.TriggerKey()); err != nil {
		s.logger.Warn("trigger touch failed", zap.Error(err))
	}
}

// handleEvent reacts to sibling changes by re-fetching and replacing the full
// local view. Replace-not-apply keeps the handler idempotent: receiving the
// same event twice converges on the same state.
func (s *Service) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventEntityUpdated, domain.EventEntityDeleted, domain.EventSyncCompleted:
		s.refreshFromRemote(context.Background())
	case domain.EventSettingsUpdated:
		// Settings are read through the cache on demand; nothing to refresh.
	}
}

func (s *Service) refreshFromRemote(ctx context.Context) {
	if s.remote == nil {
		return
	}
	items, err := s.remote.List(ctx, s.desc, repository.EntityFilter{})
	if err != nil {
		s.logger.Warn("refresh from remote failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	if err := s.cache.WriteCollection(s.desc.CollectionKey(), items); err != nil {
		s.logger.Warn("refresh cache write failed", zap.Error(err))
	}
	s.mu.Unlock()
}
