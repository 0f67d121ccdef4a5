// Package runtime hosts the long-lived background routines of the process.
package runtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/cache"
	"kestrel/internal/config"
)

// LaunchCacheSweep starts the periodic expiry sweep over the result cache.
// The interval follows the configuration live; the returned cancel stops the
// routine.
func LaunchCacheSweep(ctx context.Context, resultCache *cache.Cache) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		updates := config.CacheSweepIntervalUpdates()
		interval := <-updates
		timer := time.NewTimer(interval)
		defer timer.Stop()

		log.Debug("Cache sweep routine started", "interval", interval)

		for {
			select {
			case <-ctx.Done():
				return
			case interval = <-updates:
				timer.Reset(interval)
				log.Debug("Cache sweep interval updated", "interval", interval)
			case <-timer.C:
				if removed := resultCache.InvalidateExpired(); removed > 0 {
					log.Debug("Expired cache entries swept", "removed", removed)
				}
				timer.Reset(interval)
			}
		}
	}()

	return cancel
}
