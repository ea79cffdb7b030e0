package api

import (
	"expvar"
	"log"
	"net/http"
	"time"
)

var (
	requestsTotal  = expvar.NewInt("requests_total")
	requestsErrors = expvar.NewInt("requests_errors_total")
)

type loggingTransport struct {
	next http.RoundTripper
}

func (t loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	duration := time.Since(start)
	requestsTotal.Add(1)
	requestID := r.Header.Get("X-Request-ID")
	if err != nil {
		requestsErrors.Add(1)
		log.Printf("request method=%s path=%s error=%q duration_ms=%d request_id=%s", r.Method, r.URL.Path, err, duration.Milliseconds(), requestID)
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		requestsErrors.Add(1)
	}
	log.Printf("request method=%s path=%s status=%d duration_ms=%d request_id=%s", r.Method, r.URL.Path, resp.StatusCode, duration.Milliseconds(), requestID)
	return resp, nil
}
