package core

import (
	"context"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// downloadAttempts is the retry budget for one network acquisition.
const downloadAttempts = 5

const (
	baseRetryDelay = 250 * time.Millisecond
	maxRetryDelay  = 4 * time.Second
)

// withRetry runs op up to attempts times, re-invoking it only for
// failures the predicate accepts, with capped exponential backoff
// between tries. The last failure is returned once the budget is
// exhausted; non-retryable failures return immediately.
func withRetry(ctx context.Context, attempts int, retryable func(error) bool, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("operation canceled").
				WithCause(ctx.Err())
		}
		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt < attempts-1 {
			log.Ctx(ctx).Debug().
				Int("attempt", attempt+1).
				Err(err).
				Msg("retrying after connection failure")
			time.Sleep(retryDelay(attempt))
		}
	}
	return lastErr
}

func retryDelay(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<attempt)
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}
