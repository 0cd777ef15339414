package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retry runs op until it succeeds, returns a permanent error or the policy is
// exhausted. Every attempt runs with its own timeout.
func retry[T any](ctx context.Context, o *options, what string, op func(ctx context.Context) (T, error)) (T, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = o.retry.InitialInterval
	if o.retry.MaxInterval > 0 {
		expBackoff.MaxInterval = o.retry.MaxInterval
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return op(attemptCtx)
	}

	notify := func(err error, next time.Duration) {
		slog.Warn("Fetch failed, retrying",
			"operation", what,
			"attempt", attempt,
			"retry_in", next,
			"error", err)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(o.retry.MaxAttempts),
		backoff.WithNotify(notify),
	)
}
