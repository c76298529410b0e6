package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/replicagate/replicagate/internal/storage"
)

func newTestBucketHandler(t *testing.T) (*BucketHandler, storage.Storage) {
	t.Helper()
	backend := storage.NewMemoryBackend("test")
	return NewBucketHandler(backend, "default"), backend
}

func TestBucketHandlerHeadBucketSucceeds(t *testing.T) {
	h, _ := newTestBucketHandler(t)

	r := httptest.NewRequest(http.MethodHead, "/default", nil)
	w := httptest.NewRecorder()
	h.HeadBucket(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HeadBucket wrote a body: %q", w.Body.String())
	}
}

func TestBucketHandlerListObjectsEmpty(t *testing.T) {
	h, _ := newTestBucketHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/default", nil)
	w := httptest.NewRecorder()
	h.ListObjects(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<KeyCount>0</KeyCount>") {
		t.Errorf("body missing zero KeyCount: %q", w.Body.String())
	}
}

func TestBucketHandlerListObjectsFiltersByPrefix(t *testing.T) {
	h, backend := newTestBucketHandler(t)
	backend.PutObject(context.Background(), "logs/a.txt", strings.NewReader("a"))
	backend.PutObject(context.Background(), "logs/b.txt", strings.NewReader("b"))
	backend.PutObject(context.Background(), "other.txt", strings.NewReader("c"))

	r := httptest.NewRequest(http.MethodGet, "/default?prefix=logs/", nil)
	w := httptest.NewRecorder()
	h.ListObjects(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "<KeyCount>2</KeyCount>") {
		t.Errorf("body = %q, want KeyCount 2", body)
	}
	if strings.Contains(body, "other.txt") {
		t.Errorf("body unexpectedly includes other.txt: %q", body)
	}
}

func TestBucketHandlerListObjectsRespectsMaxKeys(t *testing.T) {
	h, backend := newTestBucketHandler(t)
	for _, k := range []string{"a", "b", "c"} {
		backend.PutObject(context.Background(), k, strings.NewReader(k))
	}

	r := httptest.NewRequest(http.MethodGet, "/default?max-keys=2", nil)
	w := httptest.NewRecorder()
	h.ListObjects(w, r)

	if !strings.Contains(w.Body.String(), "<MaxKeys>2</MaxKeys>") {
		t.Errorf("body missing MaxKeys 2: %q", w.Body.String())
	}
}
