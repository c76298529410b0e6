package handlers

import (
	"io"
	"net/http"

	"github.com/replicagate/replicagate/internal/storage"
)

// ObjectHandler serves the object-level operations: get, head, put, delete.
type ObjectHandler struct {
	engine storage.Storage
}

// NewObjectHandler constructs an ObjectHandler dispatching through engine.
func NewObjectHandler(engine storage.Storage) *ObjectHandler {
	return &ObjectHandler{engine: engine}
}

// GetObject handles GET /{bucket}/{key...}, streaming the object body
// straight to the response without buffering it in memory.
func (h *ObjectHandler) GetObject(w http.ResponseWriter, r *http.Request, key string) {
	body, meta, err := h.engine.GetObject(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	setObjectResponseHeaders(w, meta)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}

// HeadObject handles HEAD /{bucket}/{key...}: identical response headers to
// GetObject, no body.
func (h *ObjectHandler) HeadObject(w http.ResponseWriter, r *http.Request, key string) {
	meta, err := h.engine.HeadObject(r.Context(), key)
	if err != nil {
		writeErrorNoBody(w, err)
		return
	}
	setObjectResponseHeaders(w, meta)
	w.WriteHeader(http.StatusOK)
}

// PutObject handles PUT /{bucket}/{key...}. The request body streams
// directly into the replication engine's write path; it is never buffered
// whole in the handler.
func (h *ObjectHandler) PutObject(w http.ResponseWriter, r *http.Request, key string) {
	etag, err := h.engine.PutObject(r.Context(), key, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
}

// DeleteObject handles DELETE /{bucket}/{key...}.
func (h *ObjectHandler) DeleteObject(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.engine.DeleteObject(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
