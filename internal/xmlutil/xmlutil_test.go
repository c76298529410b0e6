package xmlutil

import (
	"encoding/xml"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
)

func TestWriteErrorRendersCodeMessageAndRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, gwerrors.ErrNoSuchKey)

	if w.Code != 404 {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content-type = %q, want application/xml", ct)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, xmlHeader) {
		t.Fatalf("body missing XML declaration: %q", body)
	}
	if strings.Contains(body, "xmlns") {
		t.Fatalf("error body must not carry an xmlns: %q", body)
	}

	var resp ErrorResponse
	if err := xml.Unmarshal([]byte(body[len(xmlHeader):]), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "NoSuchKey" {
		t.Errorf("Code = %q, want NoSuchKey", resp.Code)
	}
	if resp.Message == "" {
		t.Error("Message is empty")
	}
	if resp.RequestID == "" {
		t.Error("RequestId is empty")
	}
}

func TestWriteErrorGeneratesDistinctRequestIDsPerCall(t *testing.T) {
	w1 := httptest.NewRecorder()
	WriteError(w1, gwerrors.ErrInternalError)
	w2 := httptest.NewRecorder()
	WriteError(w2, gwerrors.ErrInternalError)

	var r1, r2 ErrorResponse
	xml.Unmarshal([]byte(w1.Body.String()[len(xmlHeader):]), &r1)
	xml.Unmarshal([]byte(w2.Body.String()[len(xmlHeader):]), &r2)

	if r1.RequestID == r2.RequestID {
		t.Fatalf("two calls produced the same RequestId %q", r1.RequestID)
	}
}

func TestWriteListObjectsEmptyIsNotTruncated(t *testing.T) {
	w := httptest.NewRecorder()
	WriteListObjects(w, "default", "", 1000, nil)

	var result ListBucketResult
	body := w.Body.String()
	if err := xml.Unmarshal([]byte(body[len(xmlHeader):]), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.KeyCount != 0 {
		t.Errorf("KeyCount = %d, want 0", result.KeyCount)
	}
	if result.IsTruncated {
		t.Error("IsTruncated = true, want false")
	}
	if result.MaxKeys != 1000 {
		t.Errorf("MaxKeys = %d, want 1000", result.MaxKeys)
	}
}

func TestWriteListObjectsIncludesContents(t *testing.T) {
	objs := []Object{
		{Key: "a.txt", LastModified: FormatLastModifiedXML(time.Unix(0, 0)), ETag: "\"abc\"", Size: 3, StorageClass: "STANDARD"},
		{Key: "b.txt", LastModified: FormatLastModifiedXML(time.Unix(0, 0)), ETag: "\"def\"", Size: 4, StorageClass: "STANDARD"},
	}
	w := httptest.NewRecorder()
	WriteListObjects(w, "default", "a", 1000, objs)

	var result ListBucketResult
	body := w.Body.String()
	if err := xml.Unmarshal([]byte(body[len(xmlHeader):]), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.KeyCount != 2 {
		t.Fatalf("KeyCount = %d, want 2", result.KeyCount)
	}
	if result.Contents[0].Key != "a.txt" || result.Contents[1].Key != "b.txt" {
		t.Errorf("Contents = %+v, want a.txt then b.txt", result.Contents)
	}
	if result.Prefix != "a" {
		t.Errorf("Prefix = %q, want %q", result.Prefix, "a")
	}
}

func TestFormatLastModifiedXMLIsRFC3339(t *testing.T) {
	ts := time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC)
	got := FormatLastModifiedXML(ts)
	if _, err := time.Parse(time.RFC3339, got); err != nil {
		t.Fatalf("FormatLastModifiedXML(%v) = %q, not RFC3339: %v", ts, got, err)
	}
}

func TestFormatLastModifiedHeaderIsHTTPDate(t *testing.T) {
	ts := time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC)
	got := FormatLastModifiedHeader(ts)
	if !strings.HasSuffix(got, "GMT") {
		t.Fatalf("FormatLastModifiedHeader(%v) = %q, want GMT suffix", ts, got)
	}
}
