package chainadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("connection reset by peer"), true},
		{errors.New("context deadline exceeded: timeout"), true},
		{errors.New("429 too many requests"), true},
		{errors.New("execution reverted: insufficient balance"), false},
		{errors.New("some other failure"), false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, isRetryable(c.err), "err=%v", c.err)
	}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err := withRetry(context.Background(), policy, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryNeverRetriesRevert(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err := withRetry(context.Background(), policy, func() error {
		attempts++
		return errors.New("execution reverted: wrong preimage")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	err := withRetry(context.Background(), policy, func() error {
		attempts++
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, 3, attempts)
}
