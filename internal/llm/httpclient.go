package llm

import (
	"net/http"
	"time"
)

// NewHTTPClient bounds a whole request, body included, by timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewStreamingHTTPClient bounds only the wait for response headers. The body
// of a stream may run longer and is limited by the request context instead.
func NewStreamingHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}
