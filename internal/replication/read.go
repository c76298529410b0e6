package replication

import (
	"context"

	"github.com/replicagate/replicagate/internal/config"
	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/storage"
)

// HeadBucket implements the read-mode strategies for a bucket existence
// check. not-found here means ErrNoSuchBucket.
func (e *Engine) HeadBucket(ctx context.Context) error {
	call := func(b storage.Storage) (struct{}, error) { return struct{}{}, b.HeadBucket(ctx) }

	switch e.readMode {
	case config.ReadModePrimaryOnly:
		return e.primary().HeadBucket(ctx)
	case config.ReadModePrimaryFallback:
		_, err := primaryFallback(ctx, "head_bucket", gwerrors.ErrNoSuchBucket, e, call)
		return err
	case config.ReadModeBestEffort:
		_, err := bestEffort(ctx, "head_bucket", gwerrors.ErrNoSuchBucket, e, call)
		return err
	case config.ReadModeAllConsistent:
		_, err := allConsistentRun(ctx, "head_bucket", e, call)
		return err
	default:
		return internalErrorf("unknown read mode %q", e.readMode)
	}
}

// ListObjects implements the read-mode strategies for listing. An empty
// result is a success, never treated as not-found.
func (e *Engine) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]storage.ObjectMetadata, error) {
	call := func(b storage.Storage) ([]storage.ObjectMetadata, error) {
		return b.ListObjects(ctx, prefix, maxKeys)
	}

	switch e.readMode {
	case config.ReadModePrimaryOnly:
		return e.primary().ListObjects(ctx, prefix, maxKeys)
	case config.ReadModePrimaryFallback:
		return primaryFallback(ctx, "list_objects", gwerrors.ErrNoSuchKey, e, call)
	case config.ReadModeBestEffort:
		return bestEffort(ctx, "list_objects", gwerrors.ErrNoSuchKey, e, call)
	case config.ReadModeAllConsistent:
		results, err := allConsistentRun(ctx, "list_objects", e, call)
		if err != nil {
			return nil, err
		}
		if err := verifyListAgreement(results); err != nil {
			return nil, err
		}
		return results[e.primaryIndex], nil
	default:
		return nil, internalErrorf("unknown read mode %q", e.readMode)
	}
}

// HeadObject implements the read-mode strategies for object metadata.
func (e *Engine) HeadObject(ctx context.Context, key string) (storage.ObjectMetadata, error) {
	call := func(b storage.Storage) (storage.ObjectMetadata, error) {
		return b.HeadObject(ctx, key)
	}

	switch e.readMode {
	case config.ReadModePrimaryOnly:
		return e.primary().HeadObject(ctx, key)
	case config.ReadModePrimaryFallback:
		return primaryFallback(ctx, "head_object", gwerrors.ErrNoSuchKey, e, call)
	case config.ReadModeBestEffort:
		return bestEffort(ctx, "head_object", gwerrors.ErrNoSuchKey, e, call)
	case config.ReadModeAllConsistent:
		results, err := allConsistentRun(ctx, "head_object", e, call)
		if err != nil {
			return storage.ObjectMetadata{}, err
		}
		if err := verifyETagAgreement(results); err != nil {
			return storage.ObjectMetadata{}, err
		}
		return results[e.primaryIndex], nil
	default:
		return storage.ObjectMetadata{}, internalErrorf("unknown read mode %q", e.readMode)
	}
}

func verifyETagAgreement(results []storage.ObjectMetadata) error {
	if len(results) == 0 {
		return nil
	}
	want := results[0].ETag
	for _, r := range results[1:] {
		if r.ETag != want {
			return internalErrorf("backend etags disagree: %q vs %q", want, r.ETag)
		}
	}
	return nil
}

func verifyListAgreement(results [][]storage.ObjectMetadata) error {
	if len(results) == 0 {
		return nil
	}
	want := toETagMap(results[0])
	for _, r := range results[1:] {
		got := toETagMap(r)
		if !etagMapsEqual(want, got) {
			return internalErrorf("backend key->etag maps disagree")
		}
	}
	return nil
}

func toETagMap(objs []storage.ObjectMetadata) map[string]string {
	m := make(map[string]string, len(objs))
	for _, o := range objs {
		m[o.Key] = o.ETag
	}
	return m
}

func etagMapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
