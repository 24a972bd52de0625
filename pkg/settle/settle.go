// Package settle waits for surrounding state to finish initializing before
// work that depends on it runs.
package settle

import (
	"context"
	"time"
)

// Wait blocks until ready is closed or, when ready is nil, until d has
// elapsed. The fixed delay is the fallback for hosts that cannot signal
// readiness. It returns ctx.Err() if ctx ends first.
func Wait(ctx context.Context, ready <-chan struct{}, d time.Duration) error {
	if ready != nil {
		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
