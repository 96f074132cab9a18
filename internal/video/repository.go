// Package video resolves a video together with its tagged song
// segments, backed by the local store.
package video

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"utadex/internal/cache"
	"utadex/internal/db"
	"utadex/internal/feed"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// Detail is one resolved video with its song segments
type Detail struct {
	Video    models.DisplayItem
	Segments []models.DisplayItem
}

// Repository fetches video detail through the store of truth. A keyed
// mutex serializes refresh per video id so concurrent callers never
// race duplicate network writes for the same row.
type Repository struct {
	api   *holodex.Client
	repos *db.Repositories

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	log zerolog.Logger
}

// NewRepository creates the video detail repository
func NewRepository(api *holodex.Client, repos *db.Repositories) *Repository {
	return &Repository{
		api:   api,
		repos: repos,
		locks: make(map[string]*sync.Mutex),
		log:   logger.With("video"),
	}
}

func (r *Repository) lockFor(videoID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[videoID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[videoID] = l
	}
	return l
}

// refresh fetches the video and its songs and writes them into the
// store, one row per segment plus the video itself. Serialized per
// video id.
func (r *Repository) refresh(ctx context.Context, videoID string) (*holodex.VideoWithSongs, error) {
	l := r.lockFor(videoID)
	l.Lock()
	defer l.Unlock()

	resp, err := r.api.GetVideoWithSongs(ctx, videoID)
	if err != nil {
		return nil, &cache.NetworkError{Err: fmt.Errorf("failed to fetch video %s: %w", videoID, err)}
	}

	metas := make([]models.UnifiedMetadata, 0, len(resp.Songs)+1)
	metas = append(metas, feed.MetadataFromVideo(&resp.VideoItem))
	for i := range resp.Songs {
		s := resp.Songs[i]
		if s.VideoID == "" {
			s.VideoID = resp.ID
		}
		if s.ChannelID == "" {
			s.ChannelID = resp.Channel.ID
		}
		metas = append(metas, feed.MetadataFromSong(&s, resp.Channel.Name, resp.Channel.Org))
	}

	if err := r.repos.Metadata.UpsertBatch(ctx, metas); err != nil {
		return nil, &cache.StorageError{Err: err}
	}
	return resp, nil
}

// GetVideoWithSongs resolves one video and its segments: refresh from
// the network, then read the decorated rows back out of the store
func (r *Repository) GetVideoWithSongs(ctx context.Context, videoID string) (*Detail, error) {
	if _, err := r.refresh(ctx, videoID); err != nil {
		return nil, err
	}

	stored, err := r.repos.Metadata.GetByID(ctx, videoID)
	if err != nil {
		return nil, &cache.StorageError{Err: err}
	}
	segments, err := r.repos.Metadata.SegmentsForVideo(ctx, videoID)
	if err != nil {
		return nil, &cache.StorageError{Err: err}
	}

	ids := make([]string, 0, len(segments)+1)
	ids = append(ids, stored.ID)
	for _, s := range segments {
		ids = append(ids, s.ID)
	}

	byID := make(map[string]models.ItemWithStatus)
	rows, err := r.repos.Metadata.ItemsWithStatus(ctx, ids)
	if err != nil {
		r.log.Warn().Str("video_id", videoID).Err(err).Msg("status decoration failed")
	} else {
		for _, row := range rows {
			byID[row.ID] = row
		}
	}

	detail := &Detail{Video: display(byID, *stored)}
	for _, s := range segments {
		detail.Segments = append(detail.Segments, display(byID, s))
	}
	return detail, nil
}

// WatchVideo delivers video detail as a snapshot stream that refreshes
// whenever stored metadata or like/download state changes
func (r *Repository) WatchVideo(ctx context.Context, videoID string) <-chan cache.Snapshot[Detail] {
	out := make(chan cache.Snapshot[Detail], 1)

	go func() {
		defer close(out)

		send := func(s cache.Snapshot[Detail]) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(cache.Loading[Detail]()) {
			return
		}

		detail, err := r.GetVideoWithSongs(ctx, videoID)
		if err != nil {
			send(cache.Failed[Detail](err))
			return
		}
		if !send(cache.Ready(*detail, cache.OriginNetwork)) {
			return
		}

		likeCh, cancelLikes := r.repos.Notifier.Subscribe(db.TopicLikes)
		defer cancelLikes()
		dlCh, cancelDownloads := r.repos.Notifier.Subscribe(db.TopicDownloads)
		defer cancelDownloads()

		for {
			select {
			case <-ctx.Done():
				return
			case <-likeCh:
			case <-dlCh:
			}

			refreshed, rErr := r.readStored(ctx, videoID)
			if rErr != nil {
				continue
			}
			if !send(cache.Ready(*refreshed, cache.OriginCache)) {
				return
			}
		}
	}()

	return out
}

// readStored rebuilds the detail purely from the store, without a
// network refresh
func (r *Repository) readStored(ctx context.Context, videoID string) (*Detail, error) {
	stored, err := r.repos.Metadata.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	segments, err := r.repos.Metadata.SegmentsForVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(segments)+1)
	ids = append(ids, stored.ID)
	for _, s := range segments {
		ids = append(ids, s.ID)
	}
	rows, err := r.repos.Metadata.ItemsWithStatus(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.ItemWithStatus, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	detail := &Detail{Video: display(byID, *stored)}
	for _, s := range segments {
		detail.Segments = append(detail.Segments, display(byID, s))
	}
	return detail, nil
}

// FindSongByStart resolves the server-side song id for a segment
// identified by its video and start offset. The video's song list is
// refreshed first so the match runs against current data.
func (r *Repository) FindSongByStart(ctx context.Context, videoID string, startSeconds int) (*int, error) {
	resp, err := r.refresh(ctx, videoID)
	if err != nil {
		return nil, err
	}

	for i := range resp.Songs {
		if resp.Songs[i].Start == startSeconds {
			if resp.Songs[i].ID == nil {
				return nil, fmt.Errorf("song at %s+%ds has no server id", videoID, startSeconds)
			}
			return resp.Songs[i].ID, nil
		}
	}
	return nil, fmt.Errorf("no song at %s+%ds", videoID, startSeconds)
}

func display(byID map[string]models.ItemWithStatus, m models.UnifiedMetadata) models.DisplayItem {
	if row, ok := byID[m.ID]; ok {
		return row.ToDisplayItem()
	}
	return (&models.ItemWithStatus{UnifiedMetadata: m}).ToDisplayItem()
}
