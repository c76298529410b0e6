package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
)

// MemoryBackend is the reference in-process Storage implementation. It
// holds every object in a map guarded by a single reader-writer lock: reads
// acquire shared, writes acquire exclusive. There is no persistence and no
// other locking.
type MemoryBackend struct {
	name string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ObjectMetadata
}

// NewMemoryBackend constructs an empty memory backend identified by name.
func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{
		name:    name,
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryBackend) Name() string { return m.name }

func (m *MemoryBackend) HeadBucket(ctx context.Context) error {
	return nil
}

func (m *MemoryBackend) ListObjects(ctx context.Context, prefix string, maxKeys int) ([]ObjectMetadata, error) {
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) > maxKeys {
		keys = keys[:maxKeys]
	}

	result := make([]ObjectMetadata, 0, len(keys))
	for _, k := range keys {
		result = append(result, m.objects[k].meta)
	}
	return result, nil
}

func (m *MemoryBackend) HeadObject(ctx context.Context, key string) (ObjectMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return ObjectMetadata{}, gwerrors.ErrNoSuchKey
	}
	return obj.meta, nil
}

func (m *MemoryBackend) GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectMetadata, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ObjectMetadata{}, gwerrors.ErrNoSuchKey
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

func (m *MemoryBackend) PutObject(ctx context.Context, key string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", gwerrors.ErrInternalError.WithDetail(fmt.Sprintf("reading body: %v", err))
	}

	etag := computeETag(data)
	meta := ObjectMetadata{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         etag,
		LastModified: time.Now().UTC().Truncate(time.Second),
		ContentType:  DefaultContentType,
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, meta: meta}
	m.mu.Unlock()

	return etag, nil
}

func (m *MemoryBackend) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// computeETag returns the quoted-hex MD5 digest of data, the convention
// every S3-compatible backend uses for non-multipart objects.
func computeETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

var _ Storage = (*MemoryBackend)(nil)
