package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/apperrors"
)

// Retry policy defaults; overridable through config.OracleConfig.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// RetryingClient wraps a Client with exponential backoff. Rate-limit errors
// double the computed delay before the cap is applied.
type RetryingClient struct {
	inner       Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	log         zerolog.Logger
}

func NewRetryingClient(inner Client, maxAttempts int, baseDelay, maxDelay time.Duration, log zerolog.Logger) *RetryingClient {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &RetryingClient{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		log:         log.With().Str("component", "oracle_retry").Logger(),
	}
}

// Submit retries transient failures; malformed-response errors are permanent
// because resubmitting identical text yields the same shape.
func (r *RetryingClient) Submit(ctx context.Context, req Request) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.inner.Submit(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.maxAttempts {
			break
		}

		delay := r.backoff(attempt, err)
		r.log.Warn().Err(err).
			Str("document_id", req.DocumentID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("oracle call failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *RetryingClient) backoff(attempt int, err error) time.Duration {
	delay := r.baseDelay << (attempt - 1)
	if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.CodeOracleRateLimited {
		delay *= 2
	}
	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Code != apperrors.CodeOracleMalformed
	}
	return true
}
