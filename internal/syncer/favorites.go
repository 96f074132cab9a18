package syncer

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"utadex/internal/db"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// FavoriteChannelsSynchronizer pushes local favorite-channel changes
// as one patch and pulls the server's list back.
type FavoriteChannelsSynchronizer struct {
	repos *db.Repositories
	music *holodex.MusicClient
	log   zerolog.Logger
}

// NewFavoriteChannelsSynchronizer creates the favorite channel
// synchronizer
func NewFavoriteChannelsSynchronizer(repos *db.Repositories, music *holodex.MusicClient) *FavoriteChannelsSynchronizer {
	return &FavoriteChannelsSynchronizer{
		repos: repos,
		music: music,
		log:   logger.With("sync-favorites"),
	}
}

func (s *FavoriteChannelsSynchronizer) Name() string { return "favorite-channels" }

// Sync pushes then pulls
func (s *FavoriteChannelsSynchronizer) Sync(ctx context.Context) error {
	if err := s.push(ctx); err != nil {
		return err
	}
	return s.pull(ctx)
}

// push batches every local add and remove into a single PATCH
func (s *FavoriteChannelsSynchronizer) push(ctx context.Context) error {
	dirty, err := s.repos.Interactions.Dirty(ctx, models.InteractionFavChannel)
	if err != nil {
		return err
	}
	pending, err := s.repos.Interactions.PendingDelete(ctx, models.InteractionFavChannel)
	if err != nil {
		return err
	}
	if len(dirty) == 0 && len(pending) == 0 {
		return nil
	}

	ops := make([]holodex.PatchOperation, 0, len(dirty)+len(pending))
	addIDs := make([]string, 0, len(dirty))
	removeIDs := make([]string, 0, len(pending))
	for _, row := range dirty {
		ops = append(ops, holodex.PatchOperation{Op: "add", ChannelID: row.ItemID})
		addIDs = append(addIDs, row.ItemID)
	}
	for _, row := range pending {
		ops = append(ops, holodex.PatchOperation{Op: "remove", ChannelID: row.ItemID})
		removeIDs = append(removeIDs, row.ItemID)
	}

	if _, err := s.music.PatchFavorites(ctx, ops); err != nil {
		return err
	}
	if err := s.repos.Interactions.MarkBatchSynced(ctx, addIDs, models.InteractionFavChannel); err != nil {
		return err
	}
	return s.repos.Interactions.DeleteBatchPending(ctx, removeIDs, models.InteractionFavChannel)
}

// pull converges the local SYNCED favorite set on the server's list
func (s *FavoriteChannelsSynchronizer) pull(ctx context.Context) error {
	channels, err := s.music.FavoriteChannels(ctx)
	if err != nil {
		return err
	}

	remote := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		remote[ch.ID] = struct{}{}

		existing, err := s.repos.Interactions.Get(ctx, ch.ID, models.InteractionFavChannel)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			s.log.Warn().Str("channel_id", ch.ID).Err(err).Msg("favorite lookup failed")
			continue
		}
		if existing != nil {
			continue
		}

		meta := metadataFromFavorite(&ch)
		interaction := &models.UserInteraction{
			ItemID:          ch.ID,
			InteractionType: models.InteractionFavChannel,
		}
		if err := s.repos.Interactions.InsertRemote(ctx, &meta, interaction); err != nil {
			s.log.Warn().Str("channel_id", ch.ID).Err(err).Msg("failed to insert remote favorite")
		}
	}

	synced, err := s.repos.Interactions.Synced(ctx, models.InteractionFavChannel)
	if err != nil {
		return err
	}
	for _, row := range synced {
		if _, still := remote[row.ItemID]; still {
			continue
		}
		if err := s.repos.Interactions.RemoveRemote(ctx, row.ItemID, models.InteractionFavChannel); err != nil {
			s.log.Warn().Str("channel_id", row.ItemID).Err(err).Msg("failed to remove stale favorite")
		}
	}
	return nil
}

func metadataFromFavorite(ch *holodex.FavoriteChannel) models.UnifiedMetadata {
	name := ch.Name
	if ch.EnglishName != nil && *ch.EnglishName != "" {
		name = *ch.EnglishName
	}
	return models.UnifiedMetadata{
		ID:                ch.ID,
		Title:             name,
		ArtistName:        ch.Name,
		Type:              models.TypeChannel,
		UploaderAvatarURL: ch.Photo,
		ChannelID:         ch.ID,
		Org:               ch.Org,
		Status:            "past",
	}
}
