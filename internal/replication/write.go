package replication

import (
	"context"
	"io"
	"log/slog"

	"github.com/replicagate/replicagate/internal/config"
	"github.com/replicagate/replicagate/internal/storage"
)

// PutObject implements the write-mode strategies. AsyncReplication writes
// to the primary synchronously and the client sees that result; MultiSync
// fans the body out to every backend and waits for all of them.
func (e *Engine) PutObject(ctx context.Context, key string, body io.Reader) (string, error) {
	switch e.writeMode {
	case config.WriteModeAsyncReplication:
		return e.putObjectAsyncReplication(ctx, key, body)
	case config.WriteModeMultiSync:
		return e.putObjectMultiSync(ctx, key, body)
	default:
		return "", internalErrorf("unknown write mode %q", e.writeMode)
	}
}

func (e *Engine) putObjectAsyncReplication(ctx context.Context, key string, body io.Reader) (string, error) {
	primary := e.primary()
	etag, err := primary.PutObject(ctx, key, body)
	if err != nil {
		logBackendResult("put_object", primary.Name(), err, false)
		return "", err
	}
	logBackendResult("put_object", primary.Name(), nil, false)

	others := e.otherBackends()
	if len(others) > 0 {
		go e.replicatePutInBackground(key, others)
	}

	return etag, nil
}

// replicatePutInBackground reads the object back from the primary once and
// broadcasts that stream to every other backend, so large objects are
// replicated without ever buffering the whole thing in the foreground
// request. Failures here are logged and never surfaced to the client.
func (e *Engine) replicatePutInBackground(key string, others []indexedBackend) {
	ctx := context.Background()
	primary := e.primary()

	body, _, err := primary.GetObject(ctx, key)
	if err != nil {
		slog.Error("background replication: failed to read object back from primary",
			"key", key, "backend", primary.Name(), "error", err)
		return
	}
	defer body.Close()

	results, err := broadcastStream(ctx, key, body, others)
	if err != nil {
		slog.Error("background replication: source stream failed", "key", key, "error", err)
	}
	for _, r := range results {
		logBackendResult("put_object (background)", e.backends[r.index].Name(), r.err, false)
	}
}

func (e *Engine) putObjectMultiSync(ctx context.Context, key string, body io.Reader) (string, error) {
	all := make([]indexedBackend, len(e.backends))
	for i, b := range e.backends {
		all[i] = indexedBackend{index: i, backend: b}
	}

	results, err := broadcastStream(ctx, key, body, all)
	if err != nil {
		return "", internalErrorf("reading request body: %v", err)
	}

	etags := make([]string, len(e.backends))
	for _, r := range results {
		logBackendResult("put_object", e.backends[r.index].Name(), r.err, false)
		if r.err != nil {
			// Known limitation: no rollback against backends that already
			// succeeded.
			return "", internalErrorf("backend %q failed in multi-sync mode: %v", e.backends[r.index].Name(), r.err)
		}
		etags[r.index] = r.etag
	}

	return etags[e.primaryIndex], nil
}

// DeleteObject implements the write-mode strategies for deletion. Delete is
// idempotent at every backend, so there is nothing analogous to
// not-found-is-authoritative here.
func (e *Engine) DeleteObject(ctx context.Context, key string) error {
	switch e.writeMode {
	case config.WriteModeAsyncReplication:
		return e.deleteObjectAsyncReplication(ctx, key)
	case config.WriteModeMultiSync:
		return e.deleteObjectMultiSync(ctx, key)
	default:
		return internalErrorf("unknown write mode %q", e.writeMode)
	}
}

func (e *Engine) deleteObjectAsyncReplication(ctx context.Context, key string) error {
	primary := e.primary()
	if err := primary.DeleteObject(ctx, key); err != nil {
		logBackendResult("delete_object", primary.Name(), err, false)
		return err
	}
	logBackendResult("delete_object", primary.Name(), nil, false)

	others := e.otherBackends()
	if len(others) > 0 {
		go func() {
			bgCtx := context.Background()
			for _, ib := range others {
				err := ib.backend.DeleteObject(bgCtx, key)
				logBackendResult("delete_object (background)", ib.backend.Name(), err, false)
			}
		}()
	}

	return nil
}

func (e *Engine) deleteObjectMultiSync(ctx context.Context, key string) error {
	type result struct {
		index int
		err   error
	}
	results := make(chan result, len(e.backends))
	for i, b := range e.backends {
		go func(idx int, b storage.Storage) {
			results <- result{index: idx, err: b.DeleteObject(ctx, key)}
		}(i, b)
	}

	for range e.backends {
		r := <-results
		logBackendResult("delete_object", e.backends[r.index].Name(), r.err, false)
		if r.err != nil {
			return internalErrorf("backend %q failed to delete in multi-sync mode: %v", e.backends[r.index].Name(), r.err)
		}
	}

	return nil
}
