package syncer

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"utadex/internal/db"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// StarredSynchronizer reconciles the starred playlist set: local stars
// and unstars are pushed, then the server's set replaces the SYNCED
// portion of the local one.
type StarredSynchronizer struct {
	repos *db.Repositories
	music *holodex.MusicClient
	log   zerolog.Logger
}

// NewStarredSynchronizer creates the starred playlist synchronizer
func NewStarredSynchronizer(repos *db.Repositories, music *holodex.MusicClient) *StarredSynchronizer {
	return &StarredSynchronizer{
		repos: repos,
		music: music,
		log:   logger.With("sync-starred"),
	}
}

func (s *StarredSynchronizer) Name() string { return "starred-playlists" }

// Sync pushes local changes then pulls the authoritative set
func (s *StarredSynchronizer) Sync(ctx context.Context) error {
	dirty, err := s.repos.Starred.ByStatus(ctx, models.SyncDirty)
	if err != nil {
		return err
	}
	for _, row := range dirty {
		if err := s.music.StarPlaylist(ctx, row.PlaylistID); err != nil {
			s.log.Warn().Str("playlist_id", row.PlaylistID).Err(err).Msg("star push failed")
			continue
		}
		if err := s.repos.Starred.MarkSynced(ctx, row.PlaylistID); err != nil {
			s.log.Warn().Str("playlist_id", row.PlaylistID).Err(err).Msg("failed to confirm star")
		}
	}

	pending, err := s.repos.Starred.ByStatus(ctx, models.SyncPendingDelete)
	if err != nil {
		return err
	}
	for _, row := range pending {
		if err := s.music.UnstarPlaylist(ctx, row.PlaylistID); err != nil {
			s.log.Warn().Str("playlist_id", row.PlaylistID).Err(err).Msg("unstar push failed")
			continue
		}
		if err := s.repos.Starred.ConfirmRemoval(ctx, row.PlaylistID); err != nil {
			s.log.Warn().Str("playlist_id", row.PlaylistID).Err(err).Msg("failed to confirm unstar")
		}
	}

	stubs, err := s.music.ListStarred(ctx)
	if err != nil {
		return err
	}
	serverIDs := make([]string, 0, len(stubs))
	for _, stub := range stubs {
		serverIDs = append(serverIDs, strconv.FormatInt(stub.ID, 10))
	}
	return s.repos.Starred.ReplaceSynced(ctx, serverIDs)
}
