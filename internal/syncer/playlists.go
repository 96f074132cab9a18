package syncer

import (
	"context"
)

// PlaylistSyncer is the playlist service's sync surface. Satisfied by
// the playlist service.
type PlaylistSyncer interface {
	SyncAll(ctx context.Context)
}

// PlaylistSynchronizer adapts the playlist sync passes to the
// coordinator. Per-playlist failures are handled inside the passes, so
// a round as a whole never errors.
type PlaylistSynchronizer struct {
	svc PlaylistSyncer
}

// NewPlaylistSynchronizer creates the playlist synchronizer
func NewPlaylistSynchronizer(svc PlaylistSyncer) *PlaylistSynchronizer {
	return &PlaylistSynchronizer{svc: svc}
}

func (s *PlaylistSynchronizer) Name() string { return "playlists" }

// Sync runs the deletion, upsert, and pull-merge passes
func (s *PlaylistSynchronizer) Sync(ctx context.Context) error {
	s.svc.SyncAll(ctx)
	return nil
}
