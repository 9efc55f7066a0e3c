// Package backup implements export and import of one domain's full state as
// a portable JSON document.
package backup

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/usecase/content"
)

const DocumentVersion = "1.0"

// Document is the export/import format: the domain's entities, its settings
// aspect, and provenance metadata.
type Document struct {
	Entities  []domain.Entity `json:"entities"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
}

type Service struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Export snapshots the locally cached state. The local cache is used rather
// than the remote store so exports work offline and reflect exactly what this
// process serves.
func (s *Service) Export(svc *content.Service) *Document {
	doc := &Document{
		Entities:  svc.LocalList(),
		Timestamp: time.Now().UnixMilli(),
		Version:   DocumentVersion,
	}
	if doc.Entities == nil {
		doc.Entities = []domain.Entity{}
	}
	if settings, ok := svc.Settings(); ok {
		doc.Settings = settings
	}
	return doc
}

// Import validates the document before touching anything: a payload whose
// entities field is not a JSON array is rejected and existing state is left
// exactly as it was.
func (s *Service) Import(ctx context.Context, svc *content.Service, raw []byte) error {
	var probe struct {
		Entities json.RawMessage `json:"entities"`
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "malformed backup document", err)
	}
	if len(probe.Entities) == 0 {
		return domain.NewError(domain.ErrCodeInvalid, "backup document has no entities field")
	}

	var entities []domain.Entity
	if err := json.Unmarshal(probe.Entities, &entities); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "entities field is not an array", err)
	}

	if err := svc.ReplaceCollection(ctx, entities); err != nil {
		return err
	}

	if len(probe.Settings) > 0 {
		if err := svc.UpdateSettings(ctx, probe.Settings); err != nil {
			return err
		}
	}

	s.logger.Info("backup imported",
		zap.String("domain", svc.Descriptor().Name),
		zap.Int("entities", len(entities)))
	return nil
}
