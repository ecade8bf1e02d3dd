package llm

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// retryingProvider wraps a provider and retries transient network failures.
// Authentication, quota and response errors are never retried.
type retryingProvider struct {
	Provider
	maxRetries uint64
	base       time.Duration
}

// WithRetry wraps p with bounded exponential backoff. A non-positive
// maxRetries returns p unchanged.
func WithRetry(p Provider, maxRetries int, base time.Duration) Provider {
	if maxRetries <= 0 {
		return p
	}
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	return &retryingProvider{Provider: p, maxRetries: uint64(maxRetries), base: base}
}

func (r *retryingProvider) backoff() retry.Backoff {
	b := retry.NewExponential(r.base)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(r.maxRetries, b)
}

func (r *retryingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	attempt := 0
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		var err error
		resp, err = r.Provider.Generate(ctx, req)
		if err != nil && IsRetryable(err) {
			log.Warn().Err(err).Str("provider", r.Name()).Int("attempt", attempt).Msg("Retrying LLM request")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GenerateStream retries only while no fragment has been emitted; once the
// client has seen output a restart would duplicate it.
func (r *retryingProvider) GenerateStream(ctx context.Context, req Request, emit EmitFunc) error {
	started := false
	attempt := 0
	wrapped := func(fragment string) error {
		started = true
		return emit(fragment)
	}

	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		attempt++
		err := r.Provider.GenerateStream(ctx, req, wrapped)
		if err != nil && !started && IsRetryable(err) {
			log.Warn().Err(err).Str("provider", r.Name()).Int("attempt", attempt).Msg("Retrying LLM stream")
			return retry.RetryableError(err)
		}
		return err
	})
}

// IsRetryable reports whether err is a connection-level failure where the
// request never reached the provider. Timeouts are excluded.
func IsRetryable(err error) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Kind != KindNetworkUnavailable {
		return false
	}
	if perr.Detail == "timeout" {
		return false
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	return errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") || perr.Err == nil
}
