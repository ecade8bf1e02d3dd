package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorKind classifies provider failures
type ErrorKind string

const (
	KindAuthFailed         ErrorKind = "auth_failed"
	KindQuotaExceeded      ErrorKind = "quota_exceeded"
	KindRateLimited        ErrorKind = "rate_limited"
	KindNetworkUnavailable ErrorKind = "network_unavailable"
	KindInvalidResponse    ErrorKind = "invalid_response"
	KindUnknown            ErrorKind = "unknown"
)

// maxErrorBody bounds how much of a failed response is kept for logs
const maxErrorBody = 4 << 10

// ProviderError is a classified provider failure. Detail is for logs only
// and must never be written to a client.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provider error, or KindUnknown
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a ProviderError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == kind
}

// NewInvalidResponse reports a response envelope missing the expected text
func NewInvalidResponse(provider, detail string) *ProviderError {
	return &ProviderError{Kind: KindInvalidResponse, Provider: provider, Detail: detail}
}

// ClassifyStatus maps a non-2xx provider response to a ProviderError.
// body is the (truncated) response body; it is kept as detail.
func ClassifyStatus(provider string, status int, body string) *ProviderError {
	kind := KindUnknown
	lower := strings.ToLower(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthFailed
	case status == http.StatusPaymentRequired:
		kind = KindQuotaExceeded
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
		if mentionsQuota(lower) {
			kind = KindQuotaExceeded
		}
	case mentionsQuota(lower):
		kind = KindQuotaExceeded
	}

	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		StatusCode: status,
		Detail:     strings.TrimSpace(body),
	}
}

func mentionsQuota(body string) bool {
	for _, marker := range []string{"quota", "insufficient_quota", "billing", "credit", "resource_exhausted"} {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// ClassifyTransport maps an error returned by the HTTP client. Context
// cancellation is returned unchanged so callers can tell a client abort
// from a provider failure.
func ClassifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &ProviderError{Kind: KindNetworkUnavailable, Provider: provider, Err: err}
	}

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: KindNetworkUnavailable, Provider: provider, Detail: "timeout", Err: err}
	}

	return &ProviderError{Kind: KindUnknown, Provider: provider, Err: err}
}

// ReadErrorBody reads at most maxErrorBody bytes of a failed response
func ReadErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(data)
}

// CheckResponse returns a classified error for non-2xx responses
func CheckResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return ClassifyStatus(provider, resp.StatusCode, ReadErrorBody(resp.Body))
}
