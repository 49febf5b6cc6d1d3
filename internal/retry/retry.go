// Package retry provides a small backoff-based retry helper, used at
// startup by a joining node to wait out a cluster member that hasn't
// finished coming up yet.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shareward/shareward/internal/log"
)

// Retrier executes an operation with backoff until it succeeds, ctx is
// done, or the backoff's maximum elapsed time runs out (see
// NewExponentialRetrier).
type Retrier struct {
	newBackOff func() backoff.BackOff
}

// NewExponentialRetrier returns a Retrier using exponential backoff capped
// by maxElapsed. A maxElapsed of 0 retries indefinitely until ctx is done.
func NewExponentialRetrier(maxElapsed time.Duration) *Retrier {
	return &Retrier{
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}
}

// Do runs op, retrying on error per the configured backoff policy.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	b := r.newBackOff()
	return backoff.Retry(func() error {
		err := op()
		if err != nil {
			log.Log().Warn("retry", "msg", "operation failed, will retry", "err", err.Error())
		}
		return err
	}, backoff.WithContext(b, ctx))
}
