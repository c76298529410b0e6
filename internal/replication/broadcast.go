package replication

import (
	"context"
	"io"
)

// broadcastChunkSize is the read size used when pumping the source stream
// into the per-backend queues. It is independent of the queue depth below.
const broadcastChunkSize = 32 * 1024

// broadcastQueueDepth is the per-backend channel capacity: enough breathing
// room that one slow backend doesn't immediately stall the others.
const broadcastQueueDepth = 256

type bodyChunk struct {
	data []byte
	err  error
}

// chunkReader adapts a channel of bodyChunk into an io.Reader, the body a
// single backend's PutObject call consumes.
type chunkReader struct {
	ch      <-chan bodyChunk
	pending []byte
	failed  error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.failed != nil {
			return 0, r.failed
		}
		c, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		if c.err != nil {
			r.failed = c.err
			continue
		}
		r.pending = c.data
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

type broadcastResult struct {
	index int
	etag  string
	err   error
}

// broadcastStream reads source chunk-by-chunk and fans each chunk out to
// one queue per backend, so a PUT body is never materialized in full: N
// concurrent backend PUTs each drain their own queue as their request
// body. A read error on source is propagated to every backend queue and
// returned to the caller once every backend task has finished.
//
// This is the one mechanism both write modes use: MultiSync calls it
// directly against the client stream, AsyncReplication calls it against a
// GetObject stream read back from the primary.
func broadcastStream(ctx context.Context, key string, source io.Reader, backends []indexedBackend) ([]broadcastResult, error) {
	channels := make([]chan bodyChunk, len(backends))
	results := make(chan broadcastResult, len(backends))

	for i, ib := range backends {
		ch := make(chan bodyChunk, broadcastQueueDepth)
		channels[i] = ch

		go func(idx int, ib indexedBackend, ch <-chan bodyChunk) {
			reader := &chunkReader{ch: ch}
			etag, err := ib.backend.PutObject(ctx, key, reader)
			results <- broadcastResult{index: ib.index, etag: etag, err: err}
		}(i, ib, ch)
	}

	buf := make([]byte, broadcastChunkSize)
	var readErr error
readLoop:
	for {
		n, err := source.Read(buf)
		if n > 0 {
			chunkCopy := make([]byte, n)
			copy(chunkCopy, buf[:n])
			for _, ch := range channels {
				ch <- bodyChunk{data: chunkCopy}
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
				for _, ch := range channels {
					ch <- bodyChunk{err: err}
				}
			}
			break readLoop
		}
	}

	for _, ch := range channels {
		close(ch)
	}

	collected := make([]broadcastResult, len(backends))
	for range backends {
		r := <-results
		for i, ib := range backends {
			if ib.index == r.index {
				collected[i] = r
			}
		}
	}

	return collected, readErr
}
