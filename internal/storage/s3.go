package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/docshield/view-session-service/internal/observability"
)

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // non-empty for minio / custom endpoints
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

type S3ObjectStore struct {
	client  *s3.Client
	bucket  string
	timeout time.Duration
}

func NewS3ObjectStore(ctx context.Context, opts S3Options) (*S3ObjectStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &S3ObjectStore{client: client, bucket: opts.Bucket, timeout: timeout}, nil
}

// GetBytes fetches an object under a bounded timeout. A transient failure is
// retried once after a short backoff before being surfaced.
func (s *S3ObjectStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := s.getOnce(ctx, key)
	if err == nil {
		observability.RecordStorageFetch(ctx, "success")
		return data, nil
	}
	if errors.Is(err, ErrObjectNotFound) || ctx.Err() != nil {
		observability.RecordStorageFetch(ctx, "not_found")
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(200 * time.Millisecond):
	}
	data, err = s.getOnce(ctx, key)
	if err != nil {
		observability.RecordStorageFetch(ctx, "error")
		return nil, err
	}
	observability.RecordStorageFetch(ctx, "success_retry")
	return data, nil
}

func (s *S3ObjectStore) getOnce(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
