package objstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appConfig "github.com/campaignhub/backend/internal/config"
	"github.com/campaignhub/backend/repository"
)

// Client uploads media blobs to S3-compatible object storage (AWS or MinIO)
// and returns publicly dereferenceable URLs.
type Client struct {
	s3         *s3.Client
	region     string
	endpoint   string
	publicBase string
}

// New builds an S3 client from the media configuration. Returns nil without
// error when no bucket is configured; the media service then relies on its
// ephemeral fallback.
func New(ctx context.Context, cfg appConfig.MediaConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:         client,
		region:     cfg.Region,
		endpoint:   cfg.Endpoint,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Upload stores the object and returns its public URL.
func (c *Client) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return "", err
	}
	return c.publicURL(bucket, key), nil
}

func (c *Client) publicURL(bucket, key string) string {
	if c.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", c.publicBase, bucket, key)
	}
	if c.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(c.endpoint, "/"), bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, c.region, key)
}

var _ repository.BlobStore = (*Client)(nil)
