package conn

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy returns a fixed-delay policy allowing maxAttempts tries in
// total. The delay does not grow between attempts.
func retryPolicy(ctx context.Context, maxAttempts int, delay time.Duration) backoff.BackOff {
	retries := uint64(0)
	if maxAttempts > 1 {
		retries = uint64(maxAttempts - 1)
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), retries),
		ctx,
	)
}

// permanent marks err so the retry loop stops immediately.
func permanent(err error) error {
	return backoff.Permanent(err)
}

func isUnauthorized(err error) bool {
	var de *DialError
	return errors.As(err, &de) && de.Unauthorized()
}
