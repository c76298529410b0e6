package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
)

func TestMemoryBackendPutAndGetObject(t *testing.T) {
	b := NewMemoryBackend("mem")
	ctx := context.Background()

	content := "Hello, World!"
	etag, err := b.PutObject(ctx, "hello.txt", strings.NewReader(content))
	if err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if !strings.HasPrefix(etag, `"`) || !strings.HasSuffix(etag, `"`) {
		t.Errorf("ETag not quoted: %q", etag)
	}

	reader, meta, err := b.GetObject(ctx, "hello.txt")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	defer reader.Close()

	if meta.Size != int64(len(content)) {
		t.Errorf("meta.Size = %d, want %d", meta.Size, len(content))
	}
	if meta.ETag != etag {
		t.Errorf("meta.ETag = %q, want %q", meta.ETag, etag)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("data = %q, want %q", string(data), content)
	}
}

func TestMemoryBackendGetObjectNotFound(t *testing.T) {
	b := NewMemoryBackend("mem")
	_, _, err := b.GetObject(context.Background(), "missing")
	if err != gwerrors.ErrNoSuchKey {
		t.Fatalf("err = %v, want ErrNoSuchKey", err)
	}
}

func TestMemoryBackendHeadObjectNotFound(t *testing.T) {
	b := NewMemoryBackend("mem")
	_, err := b.HeadObject(context.Background(), "missing")
	if err != gwerrors.ErrNoSuchKey {
		t.Fatalf("err = %v, want ErrNoSuchKey", err)
	}
}

func TestMemoryBackendDeleteIdempotent(t *testing.T) {
	b := NewMemoryBackend("mem")
	ctx := context.Background()

	if err := b.DeleteObject(ctx, "never-existed"); err != nil {
		t.Fatalf("DeleteObject on missing key failed: %v", err)
	}

	if _, err := b.PutObject(ctx, "k", strings.NewReader("v")); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if err := b.DeleteObject(ctx, "k"); err != nil {
		t.Fatalf("first DeleteObject failed: %v", err)
	}
	if err := b.DeleteObject(ctx, "k"); err != nil {
		t.Fatalf("second DeleteObject failed: %v", err)
	}
}

func TestMemoryBackendListObjectsPrefixAndOrder(t *testing.T) {
	b := NewMemoryBackend("mem")
	ctx := context.Background()

	for _, k := range []string{"photos/b", "photos/a", "docs/c"} {
		if _, err := b.PutObject(ctx, k, strings.NewReader(k)); err != nil {
			t.Fatalf("PutObject(%q) failed: %v", k, err)
		}
	}

	result, err := b.ListObjects(ctx, "photos/", 1000)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("len(result) = %d, want 2", len(result))
	}
	if result[0].Key != "photos/a" || result[1].Key != "photos/b" {
		t.Errorf("result keys = %q, %q, want ascending photos/a, photos/b", result[0].Key, result[1].Key)
	}
}

func TestMemoryBackendListObjectsEmptyIsSuccess(t *testing.T) {
	b := NewMemoryBackend("mem")
	result, err := b.ListObjects(context.Background(), "nope/", 1000)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("len(result) = %d, want 0", len(result))
	}
}

func TestMemoryBackendListObjectsClampsMaxKeys(t *testing.T) {
	b := NewMemoryBackend("mem")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if _, err := b.PutObject(ctx, key, strings.NewReader(key)); err != nil {
			t.Fatalf("PutObject failed: %v", err)
		}
	}

	result, err := b.ListObjects(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("len(result) = %d, want 2", len(result))
	}
}

func TestMemoryBackendHeadBucketAlwaysSucceeds(t *testing.T) {
	b := NewMemoryBackend("mem")
	if err := b.HeadBucket(context.Background()); err != nil {
		t.Fatalf("HeadBucket failed: %v", err)
	}
}
