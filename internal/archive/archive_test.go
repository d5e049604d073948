// Copyright 2025 James Ross
package archive

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3Client struct {
	lastKey  string
	lastBody []byte
	err      error
}

func (f *fakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastKey = *params.Key
	buf := make([]byte, 0)
	b := make([]byte, 4096)
	for {
		n, err := params.Body.Read(b)
		buf = append(buf, b[:n]...)
		if err != nil {
			break
		}
	}
	f.lastBody = buf
	return &s3.PutObjectOutput{}, nil
}

func TestS3BackendPutPrefixesKey(t *testing.T) {
	fake := &fakeS3Client{}
	b := &S3Backend{client: fake, bucket: "bucket", prefix: "runs/2025"}

	if err := b.Put(context.Background(), "page1.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatal(err)
	}
	if fake.lastKey != "runs/2025/page1.json" {
		t.Fatalf("expected prefixed key, got %q", fake.lastKey)
	}
	if string(fake.lastBody) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", fake.lastBody)
	}
}

func TestNoopBackendDiscards(t *testing.T) {
	var b Backend = NoopBackend{}
	if err := b.Put(context.Background(), "k", []byte("x")); err != nil {
		t.Fatalf("noop backend must never error, got %v", err)
	}
}
