package stock

import (
	"context"
	"errors"
	"time"

	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
)

const (
	// DefaultMaxAttempts bounds optimistic retries before giving up with Busy
	DefaultMaxAttempts = 4
	baseRetryDelay     = 20 * time.Millisecond
)

// executeWithRetry reruns fn while it loses optimistic version races on a
// contended balance. Each rerun re-reads state, so the delta is recomputed
// against the winner's result. Exhausting the attempts surfaces as ErrBusy;
// any other error aborts immediately.
func executeWithRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return stock.ErrBusy
}
