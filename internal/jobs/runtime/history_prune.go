package runtime

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/config"
	"kestrel/internal/database"
)

const historyPruneInterval = 24 * time.Hour

// LaunchHistoryPrune starts the daily scan-history retention sweep. Only
// meaningful when history persistence is enabled and a database is attached.
func LaunchHistoryPrune(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(historyPruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				retention := config.GetHistoryRetention()
				removed, err := database.PruneScanHistory(ctx, retention)
				if err != nil {
					log.Warn("Scan history prune failed", "error", err)
					continue
				}
				if removed > 0 {
					log.Debug("Old scan records pruned", "removed", removed, "retention", retention)
				}
			}
		}
	}()

	return cancel
}
