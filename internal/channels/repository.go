// Package channels resolves channel identity and listings uniformly
// across first-party and externally-scraped channels.
package channels

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"utadex/internal/cache"
	"utadex/internal/db"
	"utadex/internal/extractor"
	"utadex/internal/feed"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// Repository resolves channels keyed by (channelID, isExternal). The
// local store is the source of truth: network results are upserted
// first and reads come back out of the store.
type Repository struct {
	api   *holodex.Client
	ext   *extractor.Client
	repos *db.Repositories
	log   zerolog.Logger
}

// NewRepository creates the channel repository
func NewRepository(api *holodex.Client, ext *extractor.Client, repos *db.Repositories) *Repository {
	return &Repository{
		api:   api,
		ext:   ext,
		repos: repos,
		log:   logger.With("channels"),
	}
}

// GetChannel resolves one channel through the store of truth: fetch
// fresh details, upsert, then re-read the stored row
func (r *Repository) GetChannel(ctx context.Context, channelID string, isExternal bool) (*models.DisplayItem, error) {
	meta, err := r.resolve(ctx, channelID, isExternal)
	if err != nil {
		return nil, err
	}

	if err := r.repos.Metadata.Upsert(ctx, meta); err != nil {
		return nil, &cache.StorageError{Err: err}
	}

	stored, err := r.repos.Metadata.GetByID(ctx, channelID)
	if err != nil {
		return nil, &cache.StorageError{Err: err}
	}

	item := (&models.ItemWithStatus{UnifiedMetadata: *stored}).ToDisplayItem()
	return &item, nil
}

// WatchChannel delivers a channel as a live snapshot stream: Loading,
// then the resolved channel, then a refreshed snapshot whenever the
// stored metadata changes
func (r *Repository) WatchChannel(ctx context.Context, channelID string, isExternal bool) <-chan cache.Snapshot[models.DisplayItem] {
	out := make(chan cache.Snapshot[models.DisplayItem], 1)

	go func() {
		defer close(out)

		send := func(s cache.Snapshot[models.DisplayItem]) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(cache.Loading[models.DisplayItem]()) {
			return
		}

		item, err := r.GetChannel(ctx, channelID, isExternal)
		if err != nil {
			send(cache.Failed[models.DisplayItem](err))
			return
		}
		current := *item
		if !send(cache.Ready(current, cache.OriginNetwork)) {
			return
		}

		metaCh, cancelMeta := r.repos.Notifier.Subscribe(db.TopicMetadata)
		defer cancelMeta()

		for {
			select {
			case <-ctx.Done():
				return
			case <-metaCh:
			}

			stored, err := r.repos.Metadata.GetByID(ctx, channelID)
			if err != nil {
				continue
			}
			refreshed := (&models.ItemWithStatus{UnifiedMetadata: *stored}).ToDisplayItem()
			if refreshed.Equal(&current) {
				continue
			}
			current = refreshed
			if !send(cache.Ready(current, cache.OriginCache)) {
				return
			}
		}
	}()

	return out
}

func (r *Repository) resolve(ctx context.Context, channelID string, isExternal bool) (*models.UnifiedMetadata, error) {
	if isExternal {
		info, err := r.ext.ResolveChannel(ctx, channelID)
		if err != nil {
			return nil, &cache.NetworkError{Err: fmt.Errorf("failed to resolve external channel %s: %w", channelID, err)}
		}
		meta := feed.MetadataFromExternalChannel(info)
		return &meta, nil
	}

	details, err := r.api.GetChannel(ctx, channelID)
	if err != nil {
		return nil, &cache.NetworkError{Err: fmt.Errorf("failed to resolve channel %s: %w", channelID, err)}
	}
	meta := feed.MetadataFromChannel(details)
	return &meta, nil
}

// SearchExternalChannels searches scraped channels by name. Failures
// come back as an error, never a panic from the extraction layer.
func (r *Repository) SearchExternalChannels(ctx context.Context, query string) ([]extractor.ChannelSearchResult, error) {
	results, err := r.ext.SearchChannels(ctx, query)
	if err != nil {
		return nil, &cache.NetworkError{Err: fmt.Errorf("channel search failed: %w", err)}
	}
	return results, nil
}

// ExternalChannelVideos scrapes one external channel's video tab,
// keeps music content longer than a minute, persists the batch and
// returns display items. Any failure yields an empty list so a broken
// scrape never blocks the caller.
func (r *Repository) ExternalChannelVideos(ctx context.Context, channelID, channelName string) []models.DisplayItem {
	page, err := r.ext.ListChannelVideos(ctx, channelID, "")
	if err != nil {
		r.log.Warn().Str("channel_id", channelID).Err(err).Msg("external channel listing failed")
		return nil
	}

	var metas []models.UnifiedMetadata
	for i := range page.Items {
		v := &page.Items[i]
		if v.DurationSeconds <= 60 {
			continue
		}
		probe := holodex.VideoItem{
			Title:    v.Title,
			Duration: v.DurationSeconds,
			Channel:  holodex.ChannelRef{Name: channelName},
		}
		if !feed.IsMusicContent(&probe) {
			continue
		}
		metas = append(metas, feed.MetadataFromScraped(v, channelID, channelName))
	}

	if err := r.repos.Metadata.UpsertBatch(ctx, metas); err != nil {
		r.log.Warn().Str("channel_id", channelID).Err(err).Msg("failed to persist scraped videos")
		return nil
	}

	items := make([]models.DisplayItem, 0, len(metas))
	for i := range metas {
		items = append(items, (&models.ItemWithStatus{UnifiedMetadata: metas[i]}).ToDisplayItem())
	}
	return items
}
