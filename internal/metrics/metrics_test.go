package metrics

import (
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"", "/"},
		{"/my-bucket", "/{bucket}"},
		{"/my-bucket/", "/{bucket}"}, // trailing slash, no key
		{"/my-bucket/my-key", "/{bucket}/{key}"},
		{"/my-bucket/path/to/object", "/{bucket}/{key}"},
		{"/a/b/c/d", "/{bucket}/{key}"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsRegistered(t *testing.T) {
	Register()
	Register() // idempotent, must not panic

	HTTPRequestsTotal.WithLabelValues("GET", "/health", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/{bucket}/{key}").Observe(0.001)
	HTTPRequestSize.WithLabelValues("PUT", "/{bucket}/{key}").Observe(1024)
	HTTPResponseSize.WithLabelValues("GET", "/{bucket}/{key}").Observe(2048)
	ReplicationOperationsTotal.WithLabelValues("get_object", "primary", "PRIMARY_FALLBACK", "success").Inc()
	PrimaryElectionLatency.WithLabelValues("primary").Observe(0.01)
	ConsistencyViolationsTotal.WithLabelValues("head_object").Inc()
	BytesReceivedTotal.Add(1024)
	BytesSentTotal.Add(2048)
}
