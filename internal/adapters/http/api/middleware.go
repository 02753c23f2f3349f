package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/buscaparca/pkg/metrics"
)

// MetricsMiddleware records request count, latency and error class for
// endpoint. Latency is in milliseconds.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := float64(time.Since(start)) / float64(time.Millisecond)

		code := rec.code()
		status := strconv.Itoa(code)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsed)
		if code >= http.StatusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType(code))
		}
	}
}

// errorType maps a failing status code to its metric label.
func errorType(code int) string {
	switch code {
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	case http.StatusTooManyRequests:
		return "rate_limit"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	}
	if code >= http.StatusInternalServerError {
		return "server_error"
	}
	return "client_error"
}

// statusRecorder remembers the first status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
