package usecase

import (
	"context"

	"github.com/campaignhub/backend/domain"
)

// PendingSink abstracts the pending-operation processor so content services
// stay storage-agnostic. Failed remote writes land here and are replayed when
// the remote store comes back.
type PendingSink interface {
	EnqueueUpsert(ctx context.Context, domainName string, entity *domain.Entity) error
	EnqueueDelete(ctx context.Context, domainName, id string) error
	PendingCount(domainName string) int
	Drain(ctx context.Context, domainName string) (int, error)
}
