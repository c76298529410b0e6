package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/replicagate/replicagate/internal/auth"
	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/metrics"
	"github.com/replicagate/replicagate/internal/xmlutil"
)

// commonHeaders is HTTP middleware that injects common response headers on
// every response: x-amz-request-id and Date.
func commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-amz-request-id", uuid.NewString())
		w.Header().Set("Date", xmlutil.FormatLastModifiedHeader(time.Now()))
		next.ServeHTTP(w, r)
	})
}

// responseRecorder wraps http.ResponseWriter to capture the HTTP status code
// and the number of bytes written, for the metrics middleware.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.wroteHeader {
		rr.statusCode = code
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.wroteHeader {
		rr.statusCode = http.StatusOK
		rr.wroteHeader = true
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.written += n
	return n, err
}

// metricsMiddleware records request count, duration, and request/response
// size. /metrics itself is excluded to avoid self-instrumentation.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		path := metrics.NormalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(rec.statusCode)

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)

		if r.ContentLength > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(r.ContentLength))
			metrics.BytesReceivedTotal.Add(float64(r.ContentLength))
		}
		if rec.written > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(rec.written))
			metrics.BytesSentTotal.Add(float64(rec.written))
		}
	})
}

// authMiddleware verifies every request's SigV4 signature before it reaches
// the router. The health and metrics endpoints are excluded: they carry no
// credentials and exist for operators, not S3 clients.
func authMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health", "/metrics":
				next.ServeHTTP(w, r)
				return
			}

			if _, err := verifier.VerifyRequest(r); err != nil {
				gwErr, ok := err.(*gwerrors.GatewayError)
				if !ok {
					gwErr = gwerrors.ErrInternalError
				}
				xmlutil.WriteError(w, gwErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
