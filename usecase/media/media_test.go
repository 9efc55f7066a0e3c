package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/domain"
)

type stubBlobStore struct {
	fail    bool
	bucket  string
	key     string
	content []byte
}

func (s *stubBlobStore) Upload(_ context.Context, bucket, key string, body []byte, _ string) (string, error) {
	if s.fail {
		return "", errors.New("bucket unreachable")
	}
	s.bucket = bucket
	s.key = key
	s.content = body
	return "https://cdn.example.com/" + bucket + "/" + key, nil
}

func newsDesc() domain.Descriptor {
	return domain.Descriptor{Name: "news"}.Normalize()
}

func TestUpload_ToBlobStore(t *testing.T) {
	blobs := &stubBlobStore{}
	svc := New(blobs, zap.NewNop())

	result, err := svc.Upload(context.Background(), newsDesc(), "photo.PNG", []byte("img-bytes"), "image/png")
	require.NoError(t, err)

	assert.False(t, result.Ephemeral)
	assert.Equal(t, "news-media", blobs.bucket)
	assert.True(t, strings.HasPrefix(result.Key, "news-"), "key %q must carry the domain prefix", result.Key)
	assert.True(t, strings.HasSuffix(result.Key, ".png"), "key %q must keep a lowercased extension", result.Key)
	assert.Equal(t, "https://cdn.example.com/news-media/"+result.Key, result.URL)
	assert.Equal(t, []byte("img-bytes"), blobs.content)
}

func TestUpload_KeysAreUnique(t *testing.T) {
	blobs := &stubBlobStore{}
	svc := New(blobs, zap.NewNop())
	ctx := context.Background()

	first, err := svc.Upload(ctx, newsDesc(), "photo.png", []byte("a"), "image/png")
	require.NoError(t, err)
	second, err := svc.Upload(ctx, newsDesc(), "photo.png", []byte("b"), "image/png")
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
}

func TestUpload_FallsBackWhenBlobStoreFails(t *testing.T) {
	blobs := &stubBlobStore{fail: true}
	svc := New(blobs, zap.NewNop())

	result, err := svc.Upload(context.Background(), newsDesc(), "photo.png", []byte("img-bytes"), "image/png")
	require.NoError(t, err, "a blob store outage must not fail the upload")

	assert.True(t, result.Ephemeral)
	require.True(t, strings.HasPrefix(result.URL, "/media/"))

	token := strings.TrimPrefix(result.URL, "/media/")
	data, contentType, ok := svc.Serve(token)
	require.True(t, ok)
	assert.Equal(t, []byte("img-bytes"), data)
	assert.Equal(t, "image/png", contentType)
}

func TestUpload_NoBlobStoreConfigured(t *testing.T) {
	svc := New(nil, zap.NewNop())

	result, err := svc.Upload(context.Background(), newsDesc(), "doc.pdf", []byte("pdf-bytes"), "application/pdf")
	require.NoError(t, err)
	assert.True(t, result.Ephemeral)
	assert.True(t, strings.HasPrefix(result.URL, "/media/"))
}

func TestUpload_EmptyBodyRejected(t *testing.T) {
	svc := New(nil, zap.NewNop())

	_, err := svc.Upload(context.Background(), newsDesc(), "photo.png", nil, "image/png")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestServe_UnknownToken(t *testing.T) {
	svc := New(nil, zap.NewNop())

	_, _, ok := svc.Serve("missing")
	assert.False(t, ok)
}
