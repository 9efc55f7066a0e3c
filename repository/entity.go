package repository

import (
	"context"

	"github.com/campaignhub/backend/domain"
)

type EntityFilter struct {
	Limit  int
	Offset int
}

// EntityRepository is the remote store adapter. Every method degrades into a
// domain error the content service knows how to absorb; callers must keep
// functioning when the adapter is nil or every call fails.
type EntityRepository interface {
	List(ctx context.Context, desc domain.Descriptor, filter EntityFilter) ([]domain.Entity, error)
	GetByID(ctx context.Context, desc domain.Descriptor, id string) (*domain.Entity, error)
	// Upsert inserts or replaces by id and returns the server's canonical
	// copy (server-stamped timestamps included).
	Upsert(ctx context.Context, desc domain.Descriptor, entity *domain.Entity) (*domain.Entity, error)
	Delete(ctx context.Context, desc domain.Descriptor, id string) error
	// IncrementCounter bumps the descriptor's counter field in a single
	// server-side operation, never via read-modify-write.
	IncrementCounter(ctx context.Context, desc domain.Descriptor, id string) error
}
