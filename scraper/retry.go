package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-storefront-export/ratelimit"
)

// RetryPolicy retries an operation with linearly growing waits: Backoff
// after the first failure, 2*Backoff after the second, and so on.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Metrics     *Metrics
	// Sleep defaults to ratelimit.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs op until it succeeds or attempts are exhausted. It returns the
// number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ratelimit.Sleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return attempt, nil
		}
		if attempt == attempts {
			break
		}

		delay := p.backoff(attempt)
		slog.Debug("retrying after failure",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		p.Metrics.IncRetries()
		if serr := sleep(ctx, delay); serr != nil {
			return attempt, serr
		}
	}
	return attempts, err
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	return p.Backoff * time.Duration(attempt)
}
