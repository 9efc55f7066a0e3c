package postgres

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campaignhub/backend/domain"
)

func marshalFields(fields map[string]any) []byte {
	if len(fields) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}

func tableName(desc domain.Descriptor) string {
	return pgx.Identifier{desc.Table}.Sanitize()
}

func procName(desc domain.Descriptor) string {
	return pgx.Identifier{desc.CounterProc()}.Sanitize()
}

// remoteError folds any backend failure into the single classification the
// content service handles; nothing else may escape this boundary.
func remoteError(err error) error {
	if err == nil {
		return nil
	}
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	return domain.WrapError(domain.ErrCodeUnavailable, "remote store error", err)
}
