package keys

import (
	"context"
	"math/rand"
	"time"

	logger "github.com/celgate/celgate/internal/logging"
)

// Refresher drives periodic key refreshes on a fixed ticker. Ticks
// that fire while a refresh cycle is still running are dropped, so an
// overrunning cycle never builds up a backlog. A failed attempt is
// retried a bounded number of times with exponentially growing,
// jittered delays, then abandoned until the next tick.
type Refresher struct {
	store    *Store
	interval time.Duration

	maxRetries int
	baseDelay  time.Duration
}

// NewRefresher returns a Refresher ticking at the given interval.
func NewRefresher(store *Store, interval time.Duration) *Refresher {
	return &Refresher{
		store:      store,
		interval:   interval,
		maxRetries: 3,
		baseDelay:  10 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled. Refresh failures are logged and
// never propagate; requests only fail through the expired-keys state.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.store.ShouldRefresh() {
				continue
			}
			if err := r.refreshWithRetry(ctx); err != nil {
				logger.Warn("JWKS refresh failed, retrying on next tick: %v", err)
			}
		}
	}
}

func (r *Refresher) refreshWithRetry(ctx context.Context) error {
	delay := r.baseDelay
	for attempt := 0; ; attempt++ {
		err := r.store.Refresh(ctx)
		if err == nil {
			return nil
		}
		if attempt == r.maxRetries {
			return err
		}
		logger.Debug("JWKS refresh attempt %d failed: %v", attempt+1, err)

		// full jitter: sleep a random fraction of the current delay
		jittered := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay *= 2
	}
}
