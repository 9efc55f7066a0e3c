package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/internal/infrastructure/pending"
	"github.com/campaignhub/backend/repository"
	"github.com/campaignhub/backend/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the pending queue is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// PendingProcessor replays queued remote-store operations once the remote
// comes back online. It is the delivery mechanism behind the "local write
// wins now, remote catches up later" policy; it guarantees retries, not
// delivery, and drops an item after MaxRetries with a warning.
type PendingProcessor struct {
	queue   *pending.Queue
	monitor ConnectionHealth
	remote  repository.EntityRepository
	domains map[string]domain.Descriptor
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewPendingProcessor(
	queue *pending.Queue,
	monitor ConnectionHealth,
	remote repository.EntityRepository,
	descriptors []domain.Descriptor,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *PendingProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	domains := make(map[string]domain.Descriptor, len(descriptors))
	for _, desc := range descriptors {
		domains[desc.Name] = desc.Normalize()
	}

	pp := &PendingProcessor{
		queue:   queue,
		monitor: monitor,
		remote:  remote,
		domains: domains,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = pp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := pp.Drain(ctx, ""); err != nil {
			pp.logger.Error("pending drain failed", zap.Error(err))
		}
	})

	return pp
}

// Start launches the cron scheduler.
func (pp *PendingProcessor) Start() {
	if pp == nil || pp.cron == nil {
		return
	}
	pp.cron.Start()
	pp.logger.Info("pending processor started")
}

// Stop gracefully stops the scheduler.
func (pp *PendingProcessor) Stop(ctx context.Context) {
	if pp == nil || pp.cron == nil {
		return
	}
	stopCtx := pp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	pp.logger.Info("pending processor stopped")
}

// Drain replays pending items synchronously. An empty domainName drains
// every domain. Returns the number of items delivered to the remote store.
func (pp *PendingProcessor) Drain(ctx context.Context, domainName string) (int, error) {
	if pp == nil || pp.queue == nil {
		return 0, nil
	}
	if pp.remote == nil {
		return 0, nil
	}
	if pp.monitor != nil && !pp.monitor.IsOnline() {
		pp.logger.Debug("skipping pending drain (remote offline)")
		return 0, nil
	}

	items, err := pp.queue.GetBatch(domainName, pp.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	drained := 0
	for _, item := range items {
		if err := pp.processItem(ctx, item); err != nil {
			pp.logger.Error("failed to replay pending item",
				zap.String("item_id", item.ID),
				zap.String("domain", item.Domain),
				zap.String("operation", item.Operation),
				zap.Error(err))

			item.Retries++
			if item.Retries >= pp.cfg.MaxRetries {
				pp.logger.Warn("dropping pending item (max retries reached)", zap.String("item_id", item.ID))
				_ = pp.queue.Remove(item)
				continue
			}

			if err := pp.queue.Remove(item); err != nil {
				pp.logger.Warn("failed to remove pending item", zap.Error(err))
			}
			if err := pp.queue.Requeue(item); err != nil {
				pp.logger.Error("failed to requeue pending item", zap.Error(err))
			}
			continue
		}

		drained++
		if err := pp.queue.Remove(item); err != nil {
			pp.logger.Warn("failed to purge replayed pending item", zap.Error(err))
		}
	}
	return drained, nil
}

// EnqueueUpsert queues a remote upsert for later replay.
func (pp *PendingProcessor) EnqueueUpsert(_ context.Context, domainName string, entity *domain.Entity) error {
	if pp == nil || pp.queue == nil {
		return fmt.Errorf("pending processor not configured")
	}
	if entity == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	return pp.queue.Enqueue(pending.Item{
		Domain:    domainName,
		Operation: pending.OperationUpsert,
		EntityID:  entity.ID,
		Data:      payload,
	})
}

// EnqueueDelete queues a remote delete for later replay.
func (pp *PendingProcessor) EnqueueDelete(_ context.Context, domainName, id string) error {
	if pp == nil || pp.queue == nil {
		return fmt.Errorf("pending processor not configured")
	}
	return pp.queue.Enqueue(pending.Item{
		Domain:    domainName,
		Operation: pending.OperationDelete,
		EntityID:  id,
	})
}

// PendingCount returns the number of queued items for a domain.
func (pp *PendingProcessor) PendingCount(domainName string) int {
	if pp == nil || pp.queue == nil {
		return 0
	}
	size, err := pp.queue.Size(domainName)
	if err != nil {
		return 0
	}
	return size
}

func (pp *PendingProcessor) processItem(ctx context.Context, item pending.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	desc, ok := pp.domains[item.Domain]
	if !ok {
		return fmt.Errorf("unknown domain %s", item.Domain)
	}

	switch item.Operation {
	case pending.OperationUpsert:
		var entity domain.Entity
		if err := json.Unmarshal(item.Data, &entity); err != nil {
			return err
		}
		_, err := pp.remote.Upsert(ctx, desc, &entity)
		return err

	case pending.OperationDelete:
		err := pp.remote.Delete(ctx, desc, item.EntityID)
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("unsupported operation %s", item.Operation)
	}
}

var _ usecase.PendingSink = (*PendingProcessor)(nil)
