// Copyright 2025 James Ross
// Package archive mirrors downloaded response bodies to a secondary,
// durable store. The local response directory written by internal/writer
// is always the primary copy; archiving to S3 is a best-effort, non-fatal
// addition on top of it — a failed mirror write never fails a download.
package archive

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Backend is the minimal write surface a mirror needs to implement.
// Narrower than the teacher's storage-backend interface because archiving
// here has no read path: nothing in this pipeline ever reads a response
// back out of the mirror.
type Backend interface {
	Put(ctx context.Context, key string, body []byte) error
}

// NoopBackend discards every write; used when archiving is disabled.
type NoopBackend struct{}

func (NoopBackend) Put(ctx context.Context, key string, body []byte) error { return nil }

// s3Client is the subset of *s3.Client this package calls, so tests can
// substitute a fake without a real AWS SDK round trip.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend mirrors response bodies to a bucket/prefix.
type S3Backend struct {
	client s3Client
	bucket string
	prefix string
}

// NewS3Backend loads AWS credentials and region from the environment's
// default chain and constructs a Backend writing under bucket/prefix.
func NewS3Backend(ctx context.Context, bucket, prefix string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Backend{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// Put uploads body under prefix/key.
func (b *S3Backend) Put(ctx context.Context, key string, body []byte) error {
	fullKey := key
	if b.prefix != "" {
		fullKey = b.prefix + "/" + key
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(fullKey),
		Body:   bytes.NewReader(body),
	})
	return err
}
