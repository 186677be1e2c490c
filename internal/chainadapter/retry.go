package chainadapter

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RetryPolicy bounds how the adapter retries transient RPC failures.
// REVERTED and other execution-level failures are never retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches typical public RPC provider rate limiting.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// isRetryable classifies an RPC-layer error as transient. Revert errors are
// never transient: they mean the call itself is invalid and retrying would
// just fail again, or worse, double-submit a side effect that already
// landed.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "revert") {
		return false
	}
	for _, substr := range []string{
		"connection reset",
		"connection refused",
		"timeout",
		"timed out",
		"i/o timeout",
		"eof",
		"too many requests",
		"temporarily unavailable",
		"502",
		"503",
		"504",
	} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// withRetry runs fn, retrying transient failures with exponential backoff
// up to policy.MaxAttempts. The final error is wrapped with ErrNetwork when
// it was a retryable class of failure that simply ran out of attempts.
func withRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return errors.Join(ErrNetwork, lastErr)
}

// confirmationPollInterval is how often WaitForConfirmation re-checks chain
// state while waiting for a transaction to reach its required depth.
const confirmationPollInterval = 2 * time.Second

// sleepOrDone waits one poll interval, or returns ctx.Err() if the context
// is cancelled first.
func sleepOrDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(confirmationPollInterval):
		return nil
	}
}
