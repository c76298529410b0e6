package replication

import (
	"context"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/storage"
)

// primaryFallback tries the primary first. A not-found result is
// authoritative and returned immediately without trying any other backend.
// Any other error is logged and the remaining backends are tried in vector
// order; the first success wins. If every backend fails, notFoundErr is
// returned — the operation-appropriate terminal not-found (ErrNoSuchBucket
// for head_bucket, ErrNoSuchKey for object-level operations).
func primaryFallback[T any](ctx context.Context, operation string, notFoundErr error, e *Engine, call func(storage.Storage) (T, error)) (T, error) {
	var zero T

	primary := e.primary()
	result, err := call(primary)
	if err == nil {
		logBackendResult(operation, primary.Name(), nil, false)
		return result, nil
	}
	if gwerrors.IsNoSuch(err) {
		logBackendResult(operation, primary.Name(), err, false)
		return zero, err
	}
	logBackendResult(operation, primary.Name(), err, false)

	for _, ib := range e.otherBackends() {
		result, err := call(ib.backend)
		if err == nil {
			logBackendResult(operation, ib.backend.Name(), nil, false)
			return result, nil
		}
		if gwerrors.IsNoSuch(err) {
			logBackendResult(operation, ib.backend.Name(), err, false)
			return zero, err
		}
		logBackendResult(operation, ib.backend.Name(), err, false)
	}

	return zero, notFoundErr
}

type raceResult[T any] struct {
	index int
	value T
	err   error
}

// bestEffort starts every backend concurrently. The first success wins;
// the first not-found is also treated as authoritative and returned
// immediately. Only transient errors are absorbed and ignored until every
// backend has reported in, at which point the last transient error wins. If
// no backend ever reports in (no backends configured), notFoundErr is the
// operation-appropriate terminal not-found.
func bestEffort[T any](ctx context.Context, operation string, notFoundErr error, e *Engine, call func(storage.Storage) (T, error)) (T, error) {
	var zero T

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan raceResult[T], len(e.backends))
	for i, b := range e.backends {
		go func(idx int, b storage.Storage) {
			v, err := call(b)
			select {
			case resultCh <- raceResult[T]{index: idx, value: v, err: err}:
			case <-raceCtx.Done():
			}
		}(i, b)
	}

	var lastErr error
	for range e.backends {
		res := <-resultCh
		name := e.backends[res.index].Name()
		switch {
		case res.err == nil:
			logBackendResult(operation, name, nil, true)
			cancel()
			return res.value, nil
		case gwerrors.IsNoSuch(res.err):
			logBackendResult(operation, name, res.err, true)
			cancel()
			return zero, res.err
		default:
			logBackendResult(operation, name, res.err, true)
			lastErr = res.err
		}
	}

	if lastErr != nil {
		return zero, internalErrorf("all backends failed: %v", lastErr)
	}
	return zero, notFoundErr
}

// allConsistentRun invokes every backend concurrently and waits for all of
// them. Any single failure is an internal error; agreement checking on the
// returned values is the caller's responsibility. Results are returned
// ordered by backend index, matching e.backends.
func allConsistentRun[T any](ctx context.Context, operation string, e *Engine, call func(storage.Storage) (T, error)) ([]T, error) {
	type slot struct {
		value T
		err   error
	}
	slots := make([]slot, len(e.backends))
	done := make(chan int, len(e.backends))

	for i, b := range e.backends {
		go func(idx int, b storage.Storage) {
			v, err := call(b)
			slots[idx] = slot{value: v, err: err}
			done <- idx
		}(i, b)
	}

	for range e.backends {
		<-done
	}

	results := make([]T, len(e.backends))
	for i, s := range slots {
		logBackendResult(operation, e.backends[i].Name(), s.err, false)
		if s.err != nil {
			return nil, internalErrorf("backend %q failed in all-consistent mode: %v", e.backends[i].Name(), s.err)
		}
		results[i] = s.value
	}
	return results, nil
}
