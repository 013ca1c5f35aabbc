package resource

import (
	"context"
	"time"
)

// Poll calls fn every interval until ctx is done. Ticks where enabled reports
// false are skipped, so a poll can pause and resume without being restarted.
// A nil enabled always polls.
func Poll(ctx context.Context, interval time.Duration, enabled func() bool, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if enabled != nil && !enabled() {
				continue
			}
			fn(ctx)
		}
	}
}
