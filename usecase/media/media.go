// Package media uploads content images and documents to object storage. When
// object storage is unconfigured or the upload fails, the bytes are kept in
// an in-process fallback map and served under an ephemeral URL that does not
// survive a restart; callers must treat such URLs as non-durable.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/repository"
)

// UploadResult describes where an uploaded object ended up. Ephemeral marks
// fallback URLs that are only valid for this process's lifetime.
type UploadResult struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	Ephemeral bool   `json:"ephemeral"`
}

type fallbackObject struct {
	data        []byte
	contentType string
}

type Service struct {
	blobs  repository.BlobStore
	logger *zap.Logger

	mu       sync.RWMutex
	fallback map[string]fallbackObject
}

func New(blobs repository.BlobStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		blobs:    blobs,
		logger:   logger,
		fallback: make(map[string]fallbackObject),
	}
}

// Upload stores the object in the domain's media bucket under the
// {domain}-{timestamp}-{randomId}.{ext} key convention.
func (s *Service) Upload(ctx context.Context, desc domain.Descriptor, filename string, data []byte, contentType string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, domain.ErrInvalidPayload
	}

	key := buildKey(desc, filename)

	if s.blobs != nil {
		url, err := s.blobs.Upload(ctx, desc.MediaBucket, key, data, contentType)
		if err == nil {
			return &UploadResult{URL: url, Key: key}, nil
		}
		s.logger.Warn("blob upload failed, falling back to ephemeral storage",
			zap.String("bucket", desc.MediaBucket),
			zap.String("key", key),
			zap.Error(err))
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.fallback[token] = fallbackObject{data: data, contentType: contentType}
	s.mu.Unlock()

	return &UploadResult{
		URL:       "/media/" + token,
		Key:       key,
		Ephemeral: true,
	}, nil
}

// Serve returns a fallback object by token.
func (s *Service) Serve(token string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.fallback[token]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}

func buildKey(desc domain.Descriptor, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%d-%s%s", desc.Name, time.Now().UnixMilli(), short, ext)
}
