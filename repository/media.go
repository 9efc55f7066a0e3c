package repository

import "context"

// BlobStore uploads media objects and returns a publicly dereferenceable URL.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error)
}
