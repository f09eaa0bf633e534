package oxc

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
)

// RetryPolicy bounds Retry.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries twice, starting at 200ms.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      2,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// Retry runs op against dev. Timeouts and disconnections reconnect dev
// and run op again, up to policy.MaxRetries times with exponential
// backoff. Any other error is returned at once.
func Retry(ctx context.Context, dev OXC, policy RetryPolicy, op func(context.Context, OXC) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		if attempt > 0 {
			if err := dev.Reconnect(ctx); err != nil && !types.IsTransport(err) {
				return backoff.Permanent(err)
			}
		}
		attempt++

		err := op(ctx, dev)
		if err == nil {
			return nil
		}
		if !types.IsTransport(err) || errors.Is(err, types.ErrClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying after transport fault", "attempt", attempt, "wait", wait, "err", err)
	}

	return backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx), notify)
}
