package replication

import (
	"bytes"
	"context"
	"io"

	"github.com/replicagate/replicagate/internal/config"
	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/storage"
)

// GetObject implements the read-mode strategies for streaming reads. It is
// handled separately from the generic strategies in strategies.go because a
// losing backend's body must be closed rather than merely discarded, and
// AllConsistent must buffer every backend's bytes to compare etags --
// agreement cannot be verified on a single-pass stream.
func (e *Engine) GetObject(ctx context.Context, key string) (io.ReadCloser, storage.ObjectMetadata, error) {
	switch e.readMode {
	case config.ReadModePrimaryOnly:
		return e.primary().GetObject(ctx, key)
	case config.ReadModePrimaryFallback:
		return e.getObjectPrimaryFallback(ctx, key)
	case config.ReadModeBestEffort:
		return e.getObjectBestEffort(ctx, key)
	case config.ReadModeAllConsistent:
		return e.getObjectAllConsistent(ctx, key)
	default:
		return nil, storage.ObjectMetadata{}, internalErrorf("unknown read mode %q", e.readMode)
	}
}

func (e *Engine) getObjectPrimaryFallback(ctx context.Context, key string) (io.ReadCloser, storage.ObjectMetadata, error) {
	primary := e.primary()
	body, meta, err := primary.GetObject(ctx, key)
	if err == nil {
		logBackendResult("get_object", primary.Name(), nil, false)
		return body, meta, nil
	}
	logBackendResult("get_object", primary.Name(), err, false)
	if gwerrors.IsNoSuch(err) {
		return nil, storage.ObjectMetadata{}, err
	}

	for _, ib := range e.otherBackends() {
		body, meta, err := ib.backend.GetObject(ctx, key)
		if err == nil {
			logBackendResult("get_object", ib.backend.Name(), nil, false)
			return body, meta, nil
		}
		logBackendResult("get_object", ib.backend.Name(), err, false)
		if gwerrors.IsNoSuch(err) {
			return nil, storage.ObjectMetadata{}, err
		}
	}

	return nil, storage.ObjectMetadata{}, gwerrors.ErrNoSuchKey
}

type getObjectRace struct {
	index int
	body  io.ReadCloser
	meta  storage.ObjectMetadata
	err   error
}

func (e *Engine) getObjectBestEffort(ctx context.Context, key string) (io.ReadCloser, storage.ObjectMetadata, error) {
	resultCh := make(chan getObjectRace, len(e.backends))
	for i, b := range e.backends {
		go func(idx int, b storage.Storage) {
			body, meta, err := b.GetObject(ctx, key)
			resultCh <- getObjectRace{index: idx, body: body, meta: meta, err: err}
		}(i, b)
	}

	var lastErr error
	var winner *getObjectRace
	for n := 0; n < len(e.backends); n++ {
		res := <-resultCh
		name := e.backends[res.index].Name()

		if winner != nil {
			// A decision has already been made; close any late body so it
			// doesn't leak. The loop keeps draining until every backend has
			// reported, so this call returns only once the slowest backend
			// has answered.
			if res.body != nil {
				res.body.Close()
			}
			continue
		}

		switch {
		case res.err == nil:
			logBackendResult("get_object", name, nil, true)
			winner = &res
		case gwerrors.IsNoSuch(res.err):
			logBackendResult("get_object", name, res.err, true)
			winner = &res
		default:
			logBackendResult("get_object", name, res.err, true)
			lastErr = res.err
		}
	}

	if winner != nil {
		if winner.err != nil {
			return nil, storage.ObjectMetadata{}, winner.err
		}
		return winner.body, winner.meta, nil
	}
	if lastErr != nil {
		return nil, storage.ObjectMetadata{}, internalErrorf("all backends failed: %v", lastErr)
	}
	return nil, storage.ObjectMetadata{}, gwerrors.ErrNoSuchKey
}

func (e *Engine) getObjectAllConsistent(ctx context.Context, key string) (io.ReadCloser, storage.ObjectMetadata, error) {
	type slot struct {
		data []byte
		meta storage.ObjectMetadata
		err  error
	}
	slots := make([]slot, len(e.backends))
	done := make(chan int, len(e.backends))

	for i, b := range e.backends {
		go func(idx int, b storage.Storage) {
			body, meta, err := b.GetObject(ctx, key)
			if err != nil {
				slots[idx] = slot{err: err}
				done <- idx
				return
			}
			defer body.Close()
			data, readErr := io.ReadAll(body)
			if readErr != nil {
				slots[idx] = slot{err: internalErrorf("reading backend body: %v", readErr)}
			} else {
				slots[idx] = slot{data: data, meta: meta}
			}
			done <- idx
		}(i, b)
	}

	for range e.backends {
		<-done
	}

	metas := make([]storage.ObjectMetadata, len(e.backends))
	for i, s := range slots {
		logBackendResult("get_object", e.backends[i].Name(), s.err, false)
		if s.err != nil {
			return nil, storage.ObjectMetadata{}, internalErrorf("backend %q failed in all-consistent mode: %v", e.backends[i].Name(), s.err)
		}
		metas[i] = s.meta
	}
	if err := verifyETagAgreement(metas); err != nil {
		return nil, storage.ObjectMetadata{}, err
	}

	primaryData := slots[e.primaryIndex].data
	return io.NopCloser(bytes.NewReader(primaryData)), metas[e.primaryIndex], nil
}
