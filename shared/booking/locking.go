package booking

import (
	"context"
	"errors"
	"time"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/lock"
)

// acquire takes key within wait, reporting a timeout as Busy
func acquire(ctx context.Context, locker lock.Locker, key string, wait time.Duration, operation string) (func(), error) {
	start := time.Now()
	release, err := locker.Acquire(ctx, key, wait)
	lockWaitHistogram.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, lock.ErrTimeout):
		return nil, apperr.Wrap(apperr.KindBusy, err, "Session is busy, please retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, apperr.Wrap(apperr.KindBusy, err, "Request cancelled while waiting for session")
	default:
		return nil, apperr.Internal(err, "failed to acquire %s", key)
	}
}
