package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiringStore is a session store that needs expired records purged
// explicitly. Redis expires keys on its own and does not implement it.
type ExpiringStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepExpired calls DeleteExpired every interval until ctx is done.
func SweepExpired(ctx context.Context, store ExpiringStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		n, err := store.DeleteExpired(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("Expired session sweep failed")
			continue
		}
		if n > 0 {
			log.Debug().Int64("removed", n).Msg("Expired sessions swept")
		}
	}
}
