package replication

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/replicagate/replicagate/internal/config"
	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/storage"
)

// failingBackend is a stand-alone Storage whose every call fails with the
// configured error (a transient, non-NoSuchKey one in these tests), for
// exercising the error paths of each read/write strategy.
type failingBackend struct {
	name string
	err  error
}

func (f *failingBackend) Name() string { return f.name }
func (f *failingBackend) HeadBucket(ctx context.Context) error { return f.err }
func (f *failingBackend) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]storage.ObjectMetadata, error) {
	return nil, f.err
}
func (f *failingBackend) HeadObject(ctx context.Context, key string) (storage.ObjectMetadata, error) {
	return storage.ObjectMetadata{}, f.err
}
func (f *failingBackend) GetObject(ctx context.Context, key string) (io.ReadCloser, storage.ObjectMetadata, error) {
	return nil, storage.ObjectMetadata{}, f.err
}
func (f *failingBackend) PutObject(ctx context.Context, key string, body io.Reader) (string, error) {
	return "", f.err
}
func (f *failingBackend) DeleteObject(ctx context.Context, key string) error { return f.err }

var _ storage.Storage = (*failingBackend)(nil)

func newTwoMemoryBackends(t *testing.T) []storage.Storage {
	t.Helper()
	return []storage.Storage{
		storage.NewMemoryBackend("a"),
		storage.NewMemoryBackend("b"),
	}
}

func TestEnginePutMultiSyncReplicatesToAll(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModePrimaryOnly, config.WriteModeMultiSync)

	etag, err := e.PutObject(context.Background(), "key", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}
	if etag == "" {
		t.Fatal("expected non-empty etag")
	}

	for _, b := range backends {
		if _, err := b.HeadObject(context.Background(), "key"); err != nil {
			t.Errorf("backend %q missing object after MultiSync put: %v", b.Name(), err)
		}
	}
}

func TestEnginePutMultiSyncFailsIfAnyBackendFails(t *testing.T) {
	backends := []storage.Storage{
		storage.NewMemoryBackend("a"),
		&failingBackend{name: "b", err: gwerrors.ErrInternalError},
	}
	e := New(backends, 0, config.ReadModePrimaryOnly, config.WriteModeMultiSync)

	_, err := e.PutObject(context.Background(), "key", strings.NewReader("hello"))
	if !gwerrors.Is(err, gwerrors.ErrInternalError) {
		t.Fatalf("err = %v, want ErrInternalError", err)
	}
}

func TestEnginePutGetRoundTrip(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModePrimaryFallback, config.WriteModeMultiSync)

	body := "Hello, World!"
	if _, err := e.PutObject(context.Background(), "hello", strings.NewReader(body)); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	rc, meta, err := e.GetObject(context.Background(), "hello")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != body {
		t.Errorf("body = %q, want %q", data, body)
	}
	if meta.Size != int64(len(body)) {
		t.Errorf("meta.Size = %d, want %d", meta.Size, len(body))
	}
}

func TestEngineGetPrimaryFallbackNotFoundIsAuthoritative(t *testing.T) {
	backends := []storage.Storage{
		storage.NewMemoryBackend("a"),
		storage.NewMemoryBackend("b"),
	}
	// Put only on backend b, then make a a PrimaryFallback primary -- the
	// missing key on a must not trigger a fallback, because the primary's
	// NoSuchKey result is authoritative.
	if _, err := backends[1].PutObject(context.Background(), "key", strings.NewReader("data")); err != nil {
		t.Fatalf("seeding backend b failed: %v", err)
	}

	e := New(backends, 0, config.ReadModePrimaryFallback, config.WriteModeAsyncReplication)

	_, _, err := e.GetObject(context.Background(), "key")
	if !gwerrors.Is(err, gwerrors.ErrNoSuchKey) {
		t.Fatalf("err = %v, want ErrNoSuchKey", err)
	}
}

func TestEngineGetPrimaryFallbackFallsBackOnTransientError(t *testing.T) {
	backends := []storage.Storage{
		&failingBackend{name: "a", err: gwerrors.ErrInternalError},
		storage.NewMemoryBackend("b"),
	}
	if _, err := backends[1].PutObject(context.Background(), "key", strings.NewReader("data")); err != nil {
		t.Fatalf("seeding backend b failed: %v", err)
	}

	e := New(backends, 0, config.ReadModePrimaryFallback, config.WriteModeAsyncReplication)

	rc, _, err := e.GetObject(context.Background(), "key")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "data" {
		t.Errorf("body = %q, want %q", data, "data")
	}
}

func TestEngineGetBestEffortReturnsWhateverBackendHasIt(t *testing.T) {
	backends := []storage.Storage{
		storage.NewMemoryBackend("a"),
		storage.NewMemoryBackend("b"),
	}
	if _, err := backends[1].PutObject(context.Background(), "key", strings.NewReader("data")); err != nil {
		t.Fatalf("seeding backend b failed: %v", err)
	}

	e := New(backends, 0, config.ReadModeBestEffort, config.WriteModeAsyncReplication)

	rc, _, err := e.GetObject(context.Background(), "key")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	rc.Close()
}

func TestEngineGetBestEffortNotFoundWhenNoBackendHasIt(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModeBestEffort, config.WriteModeAsyncReplication)

	_, _, err := e.GetObject(context.Background(), "missing")
	if !gwerrors.Is(err, gwerrors.ErrNoSuchKey) {
		t.Fatalf("err = %v, want ErrNoSuchKey", err)
	}
}

func TestEngineHeadObjectAllConsistentDetectsDivergence(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	// Write different content directly to each backend so their etags diverge.
	if _, err := backends[0].PutObject(context.Background(), "key", strings.NewReader("version-a")); err != nil {
		t.Fatalf("seeding backend a failed: %v", err)
	}
	if _, err := backends[1].PutObject(context.Background(), "key", strings.NewReader("version-b")); err != nil {
		t.Fatalf("seeding backend b failed: %v", err)
	}

	e := New(backends, 0, config.ReadModeAllConsistent, config.WriteModeMultiSync)

	_, err := e.HeadObject(context.Background(), "key")
	if !gwerrors.Is(err, gwerrors.ErrInternalError) {
		t.Fatalf("err = %v, want ErrInternalError on divergence", err)
	}
}

func TestEngineHeadObjectAllConsistentAgreesAfterMultiSyncPut(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModeAllConsistent, config.WriteModeMultiSync)

	if _, err := e.PutObject(context.Background(), "key", strings.NewReader("data")); err != nil {
		t.Fatalf("PutObject failed: %v", err)
	}

	meta, err := e.HeadObject(context.Background(), "key")
	if err != nil {
		t.Fatalf("HeadObject failed: %v", err)
	}
	if meta.Key != "key" {
		t.Errorf("meta.Key = %q, want %q", meta.Key, "key")
	}
}

func TestEngineDeleteIdempotent(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModePrimaryOnly, config.WriteModeMultiSync)

	if err := e.DeleteObject(context.Background(), "missing"); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := e.DeleteObject(context.Background(), "missing"); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
}

func TestEngineListObjectsEmptyIsSuccess(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModeAllConsistent, config.WriteModeMultiSync)

	result, err := e.ListObjects(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestEnginePrimaryIndexAccessors(t *testing.T) {
	backends := newTwoMemoryBackends(t)
	e := New(backends, 0, config.ReadModePrimaryOnly, config.WriteModeMultiSync)

	if e.PrimaryIndex() != 0 {
		t.Fatalf("PrimaryIndex() = %d, want 0", e.PrimaryIndex())
	}
	e.SetPrimaryIndex(1)
	if e.PrimaryIndex() != 1 {
		t.Fatalf("PrimaryIndex() = %d, want 1", e.PrimaryIndex())
	}
}

func TestBroadcastStreamPropagatesSourceReadError(t *testing.T) {
	readErr := errors.New("source read failed")
	backends := []indexedBackend{
		{index: 0, backend: storage.NewMemoryBackend("a")},
		{index: 1, backend: storage.NewMemoryBackend("b")},
	}

	_, err := broadcastStream(context.Background(), "key", &erroringReader{err: readErr}, backends)
	if err == nil {
		t.Fatal("expected broadcastStream to propagate the source read error")
	}
}

type erroringReader struct{ err error }

func (r *erroringReader) Read(p []byte) (int, error) { return 0, r.err }
