package wire

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyang/notify-relay/internal/adapter/memory"
)

// minSweepInterval bounds how often expired ledger keys are purged.
const minSweepInterval = time.Second

// startSweeper periodically purges expired dedup keys so a long-lived relay
// with a TTL does not grow without bound. Lookups already treat expired keys
// as absent; the sweep only reclaims memory. With no TTL nothing expires and
// no sweeper runs.
func startSweeper(ctx context.Context, ledger *memory.Ledger, logger *slog.Logger) {
	interval := sweepInterval(ledger.TTL())
	if interval == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := ledger.Sweep(); n > 0 {
					logger.Debug("ledger sweep", "expired", n, "remaining", ledger.Len())
				}
			}
		}
	}()
}

// sweepInterval is half the TTL, never below minSweepInterval, or zero when
// keys never expire.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return max(ttl/2, minSweepInterval)
}
