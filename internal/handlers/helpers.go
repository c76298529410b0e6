// Package handlers implements the gateway's HTTP handlers: bucket-level
// list/head and object-level get/head/put/delete, each dispatching through
// a replication.Engine rather than talking to a single backend directly.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/replicagate/replicagate/internal/storage"
	"github.com/replicagate/replicagate/internal/xmlutil"
)

// extractKey returns the object key portion of the request path: everything
// after the bucket's first path segment. The caller has already matched the
// bucket segment, so this only needs to strip it.
func extractKey(path, bucket string) string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimPrefix(path, bucket)
	return strings.TrimPrefix(path, "/")
}

// parseMaxKeys parses the max-keys query parameter, defaulting to 1000 and
// clamping to the same bound the S3 backend uses.
func parseMaxKeys(raw string) int {
	const defaultMaxKeys = 1000
	if raw == "" {
		return defaultMaxKeys
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultMaxKeys
	}
	if n > defaultMaxKeys {
		return defaultMaxKeys
	}
	return n
}

// setObjectResponseHeaders sets the headers spec §6 requires on a
// get_object/head_object response.
func setObjectResponseHeaders(w http.ResponseWriter, meta storage.ObjectMetadata) {
	contentType := meta.ContentType
	if contentType == "" {
		contentType = storage.DefaultContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", meta.ETag)
	w.Header().Set("Last-Modified", xmlutil.FormatLastModifiedHeader(meta.LastModified))
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
}

func toListObject(meta storage.ObjectMetadata) xmlutil.Object {
	return xmlutil.Object{
		Key:          meta.Key,
		LastModified: xmlutil.FormatLastModifiedXML(meta.LastModified),
		ETag:         meta.ETag,
		Size:         meta.Size,
		StorageClass: "STANDARD",
	}
}
