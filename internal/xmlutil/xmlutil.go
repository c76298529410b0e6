// Package xmlutil renders the gateway's two XML response shapes: the error
// body returned for every non-2xx response, and the list-objects result.
package xmlutil

import (
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
)

// xmlHeader is the standard XML declaration prepended to all responses.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// ErrorResponse is the XML structure for the gateway's error body. It
// carries no xmlns: every client talking to this gateway is a generic S3
// client, not the AWS console, and the closed error taxonomy has no use for
// namespaced extensions.
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// Object represents a single object in a list-objects response.
type Object struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

// ListBucketResult is the XML structure for a list-objects response.
type ListBucketResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []Object `xml:"Contents"`
}

// WriteError renders a GatewayError as the XML error body and sets the
// matching HTTP status. RequestID is a freshly generated UUID per call.
func WriteError(w http.ResponseWriter, gwErr *gwerrors.GatewayError) {
	resp := ErrorResponse{
		Code:      gwErr.Code,
		Message:   gwErr.Message,
		RequestID: uuid.NewString(),
	}
	writeXML(w, gwErr.HTTPStatus, resp)
}

// WriteListObjects renders a ListBucketResult for the given bucket name,
// prefix, and matched objects. The gateway never paginates, so IsTruncated
// is always false: list_objects returns everything the backend gave it, up
// to maxKeys.
func WriteListObjects(w http.ResponseWriter, name, prefix string, maxKeys int, objects []Object) {
	result := ListBucketResult{
		Name:        name,
		Prefix:      prefix,
		KeyCount:    len(objects),
		MaxKeys:     maxKeys,
		IsTruncated: false,
		Contents:    objects,
	}
	writeXML(w, http.StatusOK, result)
}

// FormatLastModifiedXML formats a time.Time as RFC 3339, the format spec §6
// requires for the list-objects response (distinct from the RFC 2822-style
// HTTP date used in get/head object response headers).
func FormatLastModifiedXML(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatLastModifiedHeader formats a time.Time as an HTTP date, used for the
// last-modified header on get/head object responses.
func FormatLastModifiedHeader(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, xmlHeader)
	enc := xml.NewEncoder(w)
	enc.Encode(v)
}
