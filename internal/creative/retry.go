package creative

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the attempts of one step. MaxRetries counts retries
// after the first attempt.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Default retry budgets per step.
var (
	ExtractRetry   = RetryPolicy{MaxRetries: 2, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
	FillRetry      = RetryPolicy{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
	DiffRetry      = RetryPolicy{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
	CompositeRetry = RetryPolicy{MaxRetries: 2, InitialInterval: 1 * time.Second, MaxInterval: 8 * time.Second}
	TagRetry       = RetryPolicy{MaxRetries: 2, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
	DescribeRetry  = RetryPolicy{MaxRetries: 2, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
)

// permanent marks err as not worth retrying.
func permanent(err error) error {
	return backoff.Permanent(err)
}

// run calls op until it succeeds, returns a permanent error, the budget is
// spent or ctx is done. It returns the number of attempts made and the last
// error.
func (p RetryPolicy) run(ctx context.Context, op func(attempt int) error) (int, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		return op(attempt)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx))
	return attempt, err
}

// modelErr classifies a model call failure for run: transient errors are
// retried, everything else stops the loop.
func modelErr(err error) error {
	if IsTransient(err) {
		return err
	}
	return permanent(err)
}
