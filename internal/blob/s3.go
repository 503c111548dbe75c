package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend stores blobs in an S3 bucket. Object metadata rides on the
// native S3 user metadata, which is how avatar ownership is verified.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend creates an S3 backend for bucket, loading credentials from
// the standard chain (optionally pinned to a shared-config profile).
func NewS3Backend(ctx context.Context, bucket, region, profile string) (*S3Backend, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Backend{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", b.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (b *S3Backend) Fetch(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("fetching s3://%s/%s: %w", b.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("reading s3://%s/%s: %w", b.bucket, key, err)
	}

	meta := ObjectMeta{
		ContentType: aws.ToString(out.ContentType),
		Size:        int64(len(data)),
		UserMeta:    out.Metadata,
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return data, meta, nil
}

func (b *S3Backend) Store(ctx context.Context, key string, data []byte, meta ObjectMeta) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if len(meta.UserMeta) > 0 {
		input.Metadata = meta.UserMeta
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("storing s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}
