// Package storage defines the Storage contract that every backend
// implements and that the replication engine dispatches over.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectMetadata is an immutable descriptor of a stored object. A backend
// assigns size, etag, and last_modified at write time; they never change
// for the lifetime of that backend's copy of the object.
type ObjectMetadata struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

// DefaultContentType is used when a PUT does not specify one.
const DefaultContentType = "binary/octet-stream"

// Storage is the capability set every backend implements, and which the
// replication engine itself implements so it can be layered behind another
// Storage consumer. Implementations must be safe for concurrent use.
type Storage interface {
	// Name identifies the backend for logging and configuration matching.
	Name() string

	// HeadBucket checks that the backend's configured bucket exists and is
	// reachable. Returns ErrNoSuchBucket if it does not exist.
	HeadBucket(ctx context.Context) error

	// ListObjects returns metadata for objects whose key has the given
	// prefix, ordered ascending by key, truncated to maxKeys. An empty
	// result is a success, not an error.
	ListObjects(ctx context.Context, prefix string, maxKeys int) ([]ObjectMetadata, error)

	// HeadObject returns metadata for key, or ErrNoSuchKey if absent.
	HeadObject(ctx context.Context, key string) (ObjectMetadata, error)

	// GetObject returns a single-consumption byte stream and the metadata
	// for key, or ErrNoSuchKey if absent. The caller must close the stream.
	GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectMetadata, error)

	// PutObject writes body to key and returns the backend-assigned etag.
	// Success implies the object is durable and readable on this backend.
	PutObject(ctx context.Context, key string, body io.Reader) (etag string, err error)

	// DeleteObject removes key. Idempotent: deleting a missing key succeeds.
	DeleteObject(ctx context.Context, key string) error
}
