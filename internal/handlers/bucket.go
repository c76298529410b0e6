package handlers

import (
	"log/slog"
	"net/http"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/storage"
	"github.com/replicagate/replicagate/internal/xmlutil"
)

// BucketHandler serves the bucket-level operations: list objects and a bare
// existence check, both against the configured virtual bucket.
type BucketHandler struct {
	engine        storage.Storage
	virtualBucket string
}

// NewBucketHandler constructs a BucketHandler dispatching through engine.
func NewBucketHandler(engine storage.Storage, virtualBucket string) *BucketHandler {
	return &BucketHandler{engine: engine, virtualBucket: virtualBucket}
}

// HeadBucket handles HEAD /{bucket} and HEAD /{bucket}/.
func (h *BucketHandler) HeadBucket(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.HeadBucket(r.Context()); err != nil {
		writeErrorNoBody(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListObjects handles GET /{bucket} and GET /{bucket}/, with optional
// `prefix`, `max-keys`, and `list-type=2` query parameters. list-type is
// accepted but does not change the response shape: this gateway has no v1
// Marker-based pagination to distinguish from v2 ContinuationToken-based
// pagination, since it never paginates at all.
func (h *BucketHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	maxKeys := parseMaxKeys(q.Get("max-keys"))

	objects, err := h.engine.ListObjects(r.Context(), prefix, maxKeys)
	if err != nil {
		writeError(w, err)
		return
	}

	contents := make([]xmlutil.Object, 0, len(objects))
	for _, o := range objects {
		contents = append(contents, toListObject(o))
	}

	xmlutil.WriteListObjects(w, h.virtualBucket, prefix, maxKeys, contents)
}

func writeError(w http.ResponseWriter, err error) {
	gwErr, ok := err.(*gwerrors.GatewayError)
	if !ok {
		slog.Error("unmapped error reached handler boundary", "error", err)
		gwErr = gwerrors.ErrInternalError
	}
	xmlutil.WriteError(w, gwErr)
}

// writeErrorNoBody renders only the status line, for HEAD responses where
// spec §6 forbids a body.
func writeErrorNoBody(w http.ResponseWriter, err error) {
	gwErr, ok := err.(*gwerrors.GatewayError)
	if !ok {
		slog.Error("unmapped error reached handler boundary", "error", err)
		gwErr = gwerrors.ErrInternalError
	}
	w.WriteHeader(gwErr.HTTPStatus)
}
