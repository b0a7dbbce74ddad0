package retry

import (
	"context"
	"time"

	"mycloset/internal/domain"
)

// SleepFunc waits for d or until ctx is cancelled. Tests inject a recorder.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Op is one generation attempt: image bytes plus MIME type, or an error.
type Op func(ctx context.Context) ([]byte, string, error)

// Policy retries an Op with exponential backoff. The delay after failed
// attempt i is BaseDelay * 2^i. Every error is retried up to the cap; only
// parent-context cancellation short-circuits, since retrying a dead request
// would burn provider quota for nobody.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      SleepFunc
}

// Do runs op up to MaxRetries+1 times and folds the outcome into a
// GenerationResult. On success RetryCount is the number of failed attempts
// that preceded it; on exhaustion it equals MaxRetries.
func (p Policy) Do(ctx context.Context, op Op) domain.GenerationResult {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		data, mime, err := op(ctx)
		if err == nil {
			return domain.Generated(data, mime, attempt, time.Since(start))
		}
		lastErr = err
		if attempt == p.MaxRetries {
			break
		}
		if err := sleep(ctx, p.BaseDelay<<uint(attempt)); err != nil {
			return domain.GenerationFailed(lastErr, attempt, time.Since(start))
		}
	}
	return domain.GenerationFailed(lastErr, p.MaxRetries, time.Since(start))
}
