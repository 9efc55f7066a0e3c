package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/repository"
)

type entityRepository struct {
	pool *pgxpool.Pool
}

// NewEntityRepository returns a Postgres-backed implementation of
// EntityRepository. One table per content domain; the table name comes from
// the domain descriptor and is sanitized before interpolation.
func NewEntityRepository(pool *pgxpool.Pool) repository.EntityRepository {
	return &entityRepository{pool: pool}
}

func (r *entityRepository) List(ctx context.Context, desc domain.Descriptor, filter repository.EntityFilter) ([]domain.Entity, error) {
	query := fmt.Sprintf(`
	SELECT id, views, payload, created_at, updated_at
	FROM %s
	ORDER BY payload->>$1 DESC NULLS LAST, created_at DESC
	LIMIT $2 OFFSET $3
	`, tableName(desc))

	rows, err := r.pool.Query(ctx, query, desc.SortField, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, remoteError(err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, remoteError(err)
	}
	return entities, nil
}

func (r *entityRepository) GetByID(ctx context.Context, desc domain.Descriptor, id string) (*domain.Entity, error) {
	query := fmt.Sprintf(`
	SELECT id, views, payload, created_at, updated_at
	FROM %s
	WHERE id = $1
	`, tableName(desc))

	row := r.pool.QueryRow(ctx, query, id)
	return scanEntity(row)
}

func (r *entityRepository) Upsert(ctx context.Context, desc domain.Descriptor, entity *domain.Entity) (*domain.Entity, error) {
	if entity == nil {
		return nil, domain.ErrInvalidPayload
	}
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, views, payload, created_at, updated_at)
	VALUES ($1, $2, $3, COALESCE($4, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET views = EXCLUDED.views,
		payload = EXCLUDED.payload,
		updated_at = NOW()
	RETURNING created_at, updated_at
	`, tableName(desc))

	payload := marshalFields(entity.Fields)

	canonical := *entity
	if err := r.pool.QueryRow(ctx, query,
		entity.ID,
		entity.Views,
		payload,
		nullTime(entity.CreatedAt),
	).Scan(&canonical.CreatedAt, &canonical.UpdatedAt); err != nil {
		return nil, remoteError(err)
	}

	return &canonical, nil
}

func (r *entityRepository) Delete(ctx context.Context, desc domain.Descriptor, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableName(desc))
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return remoteError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func (r *entityRepository) IncrementCounter(ctx context.Context, desc domain.Descriptor, id string) error {
	// One stored procedure per domain counter keeps the increment a single
	// atomic statement on the server; concurrent viewers never lose updates.
	query := fmt.Sprintf(`SELECT %s($1)`, procName(desc))
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return remoteError(err)
	}
	return nil
}

func scanEntity(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Entity, error) {
	var entity domain.Entity
	var payload []byte

	if err := row.Scan(
		&entity.ID,
		&entity.Views,
		&payload,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, remoteError(err)
	}

	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &entity.Fields)
	}

	return &entity, nil
}
