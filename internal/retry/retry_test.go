package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeintel/codeindex/internal/errs"
)

func fastPolicy() Policy {
	return Policy{MaxTries: 4, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestDo_SucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRawErrorsUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsImmediatelyOnNonRetryableStructuredError(t *testing.T) {
	calls := 0
	sentinel := errs.New(errs.KindInvalidInput, "bad query")
	err := Do(context.Background(), fastPolicy(), func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a classified non-retryable error must not retry")
	assert.ErrorIs(t, err, sentinel)
}

func TestDo_RetriesStructuredErrorMarkedRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		calls++
		if calls < 2 {
			return errs.New(errs.KindStore, "503").WithRetryable(true)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_GivesUpAfterMaxTries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		calls++
		return errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, int(fastPolicy().MaxTries), calls)
}

func TestDo_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastPolicy(), func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestDo_ZeroPolicyFallsBackToDefault(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
