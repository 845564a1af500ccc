package main

import (
	"context"
	"log/slog"
	"time"
)

// expirer is implemented by the in-memory grant and session stores. Redis
// expires keys itself.
type expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type namedExpirer struct {
	name string
	expirer
}

// runSweeper purges expired entries every interval until ctx is done.
func runSweeper(ctx context.Context, e namedExpirer, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := e.DeleteExpired(ctx, now)
			if err != nil {
				log.WarnContext(ctx, "expiry sweep failed", "store", e.name, "error", err)
				continue
			}
			if n > 0 {
				log.DebugContext(ctx, "expired entries removed", "store", e.name, "count", n)
			}
		}
	}
}
