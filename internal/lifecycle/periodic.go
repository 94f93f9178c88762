package lifecycle

import (
	"context"
	"time"
)

// Every calls fn once per interval until ctx is done. With immediate set
// the first call happens before the first tick. A non-positive interval
// returns at once.
func Every(ctx context.Context, interval time.Duration, immediate bool, fn func(context.Context)) {
	if interval <= 0 || fn == nil {
		return
	}

	if immediate {
		fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
