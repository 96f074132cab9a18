// Package syncer reconciles local user state (likes, favorite
// channels, starred playlists, playlists) with the server.
package syncer

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"utadex/internal/logger"
)

// Synchronizer is one reconciliation unit. Sync must be idempotent:
// anything that fails keeps its local sync state and is retried on the
// next round.
type Synchronizer interface {
	Name() string
	Sync(ctx context.Context) error
}

// Coordinator runs all synchronizers concurrently, isolating failures
// so one broken synchronizer never blocks the others.
type Coordinator struct {
	syncers []Synchronizer
	log     zerolog.Logger
}

// NewCoordinator creates a coordinator over the given synchronizers
func NewCoordinator(syncers ...Synchronizer) *Coordinator {
	return &Coordinator{
		syncers: syncers,
		log:     logger.With("syncer"),
	}
}

// Run executes one full sync round
func (c *Coordinator) Run(ctx context.Context) {
	if len(c.syncers) == 0 {
		return
	}
	p := pool.New().WithMaxGoroutines(len(c.syncers))
	for _, s := range c.syncers {
		p.Go(func() {
			if err := s.Sync(ctx); err != nil {
				c.log.Warn().Str("synchronizer", s.Name()).Err(err).Msg("sync round failed")
				return
			}
			c.log.Debug().Str("synchronizer", s.Name()).Msg("sync round complete")
		})
	}
	p.Wait()
}
