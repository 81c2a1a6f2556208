// Package retry wraps the pack's cenkalti/backoff/v5 exponential-backoff
// implementation for the transient I/O errors the storage/embedding
// clients see (connection resets, 429s, Neo4j transient transaction
// failures), so every external call in internal/store, internal/graph,
// internal/cache, and internal/embedding retries the same way instead of
// each client hand-rolling its own loop.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/codeintel/codeindex/internal/errs"
)

// Policy tunes Do's backoff curve. The zero value is DefaultPolicy.
type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy makes at most 4 attempts with 200ms-capped-at-5s exponential
// backoff and the library's default jitter (randomization factor 0.5).
var DefaultPolicy = Policy{
	MaxTries:        4,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Do retries fn until it succeeds, ctx is canceled, or the policy's
// MaxTries is exhausted. Raw errors from the client libraries (HTTP,
// driver, RESP) are assumed transient and retried; an already-classified
// *errs.Error only retries if it was explicitly marked Retryable, since
// by then something upstream has already judged it (e.g. KindInvalidInput
// from a malformed query, which no amount of retrying will fix).
func Do(ctx context.Context, policy Policy, fn func() error) error {
	if policy.MaxTries == 0 {
		policy = DefaultPolicy
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	op := func() (struct{}, error) {
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if isPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(policy.MaxTries))
	return err
}

func isPermanent(err error) bool {
	var e *errs.Error
	if errors.As(err, &e) {
		return !e.Retryable
	}
	return false
}
