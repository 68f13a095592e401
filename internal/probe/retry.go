// internal/probe/retry.go
package probe

import (
	"context"
	"time"
)

// Retry is a bounded re-attempt policy: one initial try plus Retries more,
// with an optional fixed pause between them.
type Retry struct {
	Retries int
	Backoff time.Duration
}

// Do calls fn until it succeeds, reports a non-retryable error, the budget is
// spent, or ctx is done. It returns the number of attempts made and the last
// error.
func (r Retry) Do(ctx context.Context, fn func(attempt int) (retryable bool, err error)) (int, error) {
	total := r.Retries + 1
	if total < 1 {
		total = 1
	}
	var last error
	for i := 1; i <= total; i++ {
		retryable, err := fn(i)
		if err == nil {
			return i, nil
		}
		last = err
		if !retryable || i == total || ctx.Err() != nil {
			return i, last
		}
		if r.Backoff > 0 {
			t := time.NewTimer(r.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return i, last
			case <-t.C:
			}
		}
	}
	return total, last
}
