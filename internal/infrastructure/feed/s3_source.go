package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client used to read feed objects
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads feeds stored as S3 objects
type S3Source struct {
	client S3API
	logger *zap.Logger
}

// NewS3Source creates an S3 feed source
func NewS3Source(client S3API, logger *zap.Logger) *S3Source {
	return &S3Source{client: client, logger: logger}
}

// NewS3Client builds the S3 client for feeds. A non-nil endpoint selects
// path-style addressing for S3-compatible stores.
func NewS3Client(cfg aws.Config, endpoint *string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	})
}

// Open starts reading bucket/key. The caller closes the body.
func (s *S3Source) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var noSuchBucket *types.NoSuchBucket
		if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to get feed object s3://%s/%s: %w", bucket, key, err)
	}

	s.logger.Debug("feed object opened",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("size", aws.ToInt64(out.ContentLength)),
	)
	return out.Body, nil
}
