// Package playlist provides offline-first playlist management and its
// reconciliation passes against the server.
package playlist

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"utadex/internal/db"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// songIDResolutionFanout bounds the concurrent per-item song id
// lookups during the upsert pass
const songIDResolutionFanout = 6

// SongResolver maps a (video, start offset) tuple to the server's song
// id. Satisfied by the video repository.
type SongResolver interface {
	FindSongByStart(ctx context.Context, videoID string, startSeconds int) (*int, error)
}

// Service owns playlist CRUD and the three sync passes. Every pass is
// idempotent; a playlist that fails mid-pass keeps its sync state and
// is retried next round.
type Service struct {
	repos *db.Repositories
	music *holodex.MusicClient
	songs SongResolver
	log   zerolog.Logger
}

// NewService creates the playlist service
func NewService(repos *db.Repositories, music *holodex.MusicClient, songs SongResolver) *Service {
	return &Service{
		repos: repos,
		music: music,
		songs: songs,
		log:   logger.With("playlist"),
	}
}

// Create makes a new local playlist in DIRTY state
func (s *Service) Create(ctx context.Context, name string, description *string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	p := &models.Playlist{
		Name:           name,
		Description:    description,
		CreatedAt:      &now,
		LastModifiedAt: &now,
		SyncStatus:     models.SyncDirty,
	}
	return s.repos.Playlists.Create(ctx, p)
}

// Rename updates a playlist's header fields and marks it DIRTY
func (s *Service) Rename(ctx context.Context, id int64, name string, description *string) error {
	return s.repos.Playlists.UpdateMetadata(ctx, id, name, description)
}

// Delete soft-deletes a playlist; the deletion pass removes it
// server-side before the row is purged
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repos.Playlists.SoftDelete(ctx, id)
}

// List returns all live playlists
func (s *Service) List(ctx context.Context) ([]models.Playlist, error) {
	return s.repos.Playlists.List(ctx)
}

// Items returns a playlist's items in play order
func (s *Service) Items(ctx context.Context, playlistID int64) ([]models.PlaylistItem, error) {
	return s.repos.Playlists.Items(ctx, playlistID)
}

// AddItem appends a playable unit to a playlist. localOnly items never
// leave the device and survive every reconciliation pass.
func (s *Service) AddItem(ctx context.Context, playlistID int64, meta *models.UnifiedMetadata, localOnly bool) error {
	itemType := models.ItemVideo
	if meta.Type == models.TypeSegment {
		itemType = models.ItemSongSegment
	}

	videoID := meta.ID
	if meta.ParentVideoID != nil && *meta.ParentVideoID != "" {
		videoID = *meta.ParentVideoID
	}

	item := &models.PlaylistItem{
		PlaylistID:  playlistID,
		ItemID:      uuid.NewString(),
		VideoID:     videoID,
		ItemType:    itemType,
		IsLocalOnly: localOnly,
		Name:        &meta.Title,
		ArtistText:  &meta.ArtistName,
	}
	if meta.StartSeconds != nil {
		start := int(*meta.StartSeconds)
		item.StartSeconds = &start
	}
	if meta.EndSeconds != nil {
		end := int(*meta.EndSeconds)
		item.EndSeconds = &end
	}
	if urls := meta.ArtworkURLs(); len(urls) > 0 {
		item.ArtworkURL = &urls[0]
	}
	return s.repos.Playlists.AddItem(ctx, item)
}

// RemoveItem drops one item and renumbers the rest
func (s *Service) RemoveItem(ctx context.Context, playlistID int64, itemID string) error {
	return s.repos.Playlists.RemoveItem(ctx, playlistID, itemID)
}

// SyncAll runs the three reconciliation passes in order: deletions
// first so freed server ids cannot collide, then upserts, then the
// pull merge.
func (s *Service) SyncAll(ctx context.Context) {
	s.SyncDeletions(ctx)
	s.SyncUpserts(ctx)
	s.SyncPull(ctx)
}

// SyncDeletions removes PENDING_DELETE playlists server-side and
// purges the local rows. A playlist that never reached the server is
// purged directly.
func (s *Service) SyncDeletions(ctx context.Context) {
	pending, err := s.repos.Playlists.ByStatus(ctx, models.SyncPendingDelete)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load pending deletions")
		return
	}

	for _, p := range pending {
		if p.ServerID != nil {
			if err := s.music.DeletePlaylist(ctx, *p.ServerID); err != nil {
				s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("remote playlist deletion failed")
				continue
			}
		}
		if err := s.repos.Playlists.Purge(ctx, p.ID); err != nil {
			s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("failed to purge playlist")
		}
	}
}

// SyncUpserts pushes DIRTY playlists. Each playlist's syncable items
// are resolved to server song ids concurrently; items that cannot be
// resolved are skipped rather than failing the push.
func (s *Service) SyncUpserts(ctx context.Context) {
	dirty, err := s.repos.Playlists.ByStatus(ctx, models.SyncDirty)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load dirty playlists")
		return
	}

	for _, p := range dirty {
		if p.IsDeleted {
			continue
		}
		if err := s.pushPlaylist(ctx, &p); err != nil {
			s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("playlist push failed, staying dirty")
		}
	}
}

func (s *Service) pushPlaylist(ctx context.Context, p *models.Playlist) error {
	items, err := s.repos.Playlists.Items(ctx, p.ID)
	if err != nil {
		return err
	}

	songIDs := s.resolveSongIDs(ctx, items)

	req := holodex.PlaylistWriteRequest{
		Title:       p.Name,
		Description: p.Description,
		Content:     songIDs,
	}
	if p.ServerID != nil {
		if sid, pErr := strconv.ParseInt(*p.ServerID, 10, 64); pErr == nil {
			req.ID = &sid
		}
	}

	assigned, err := s.music.WritePlaylist(ctx, req)
	if err != nil {
		return err
	}

	serverID := strconv.FormatInt(assigned, 10)
	return s.repos.Playlists.SetSyncState(ctx, p.ID, models.SyncSynced, &serverID)
}

// resolveSongIDs maps syncable items to server song ids, preserving
// play order. Lookups run concurrently; a failed lookup contributes
// nothing.
func (s *Service) resolveSongIDs(ctx context.Context, items []models.PlaylistItem) []int {
	type slot struct {
		order int
		id    *int
	}

	p := pool.NewWithResults[slot]().WithMaxGoroutines(songIDResolutionFanout)
	for _, item := range items {
		if item.IsLocalOnly || item.ItemType != models.ItemSongSegment || item.StartSeconds == nil {
			continue
		}
		p.Go(func() slot {
			id, err := s.songs.FindSongByStart(ctx, item.VideoID, *item.StartSeconds)
			if err != nil {
				s.log.Warn().
					Str("video_id", item.VideoID).
					Int("start", *item.StartSeconds).
					Err(err).
					Msg("song id resolution failed")
				return slot{order: item.ItemOrder}
			}
			return slot{order: item.ItemOrder, id: id}
		})
	}

	slots := p.Wait()
	byOrder := make(map[int]*int, len(slots))
	orders := make([]int, 0, len(slots))
	for _, sl := range slots {
		if sl.id == nil {
			continue
		}
		byOrder[sl.order] = sl.id
		orders = append(orders, sl.order)
	}

	ids := make([]int, 0, len(orders))
	for _, item := range items {
		if id, ok := byOrder[item.ItemOrder]; ok {
			ids = append(ids, *id)
		}
	}
	return ids
}

// SyncPull reconciles the local playlist set against the server list:
// playlists new on the server are created locally, SYNCED locals gone
// from the server are purged, and content is merged for playlists the
// server has modified since the local copy.
func (s *Service) SyncPull(ctx context.Context) {
	stubs, err := s.music.ListPlaylists(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("playlist list pull failed")
		return
	}

	remote := make(map[string]holodex.PlaylistStub, len(stubs))
	for _, stub := range stubs {
		remote[strconv.FormatInt(stub.ID, 10)] = stub
	}

	locals, err := s.repos.Playlists.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list local playlists")
		return
	}

	known := make(map[string]struct{})
	for _, local := range locals {
		if local.ServerID == nil {
			continue
		}
		known[*local.ServerID] = struct{}{}

		if _, exists := remote[*local.ServerID]; !exists && local.SyncStatus == models.SyncSynced {
			// Deleted on the server; only SYNCED rows follow, local
			// edits are never discarded
			if err := s.repos.Playlists.Purge(ctx, local.ID); err != nil {
				s.log.Warn().Int64("playlist_id", local.ID).Err(err).Msg("failed to purge remotely deleted playlist")
			}
			continue
		}
		if local.SyncStatus != models.SyncSynced {
			continue
		}
		s.pullContent(ctx, &local)
	}

	for serverID := range remote {
		if _, exists := known[serverID]; exists {
			continue
		}
		s.adoptRemote(ctx, serverID)
	}
}

// adoptRemote creates a local SYNCED copy of a playlist that first
// appeared on the server
func (s *Service) adoptRemote(ctx context.Context, serverID string) {
	full, err := s.music.GetPlaylist(ctx, serverID)
	if err != nil {
		s.log.Warn().Str("server_id", serverID).Err(err).Msg("failed to fetch new remote playlist")
		return
	}

	p := &models.Playlist{
		ServerID:       &serverID,
		Name:           full.Title,
		Description:    full.Description,
		Owner:          full.Owner,
		CreatedAt:      full.UpdatedAt,
		LastModifiedAt: full.UpdatedAt,
		SyncStatus:     models.SyncSynced,
	}
	if full.Type != "" {
		p.Type = full.Type
	}
	id, err := s.repos.Playlists.Create(ctx, p)
	if err != nil {
		s.log.Warn().Str("server_id", serverID).Err(err).Msg("failed to adopt remote playlist")
		return
	}

	items := itemsFromRemote(id, full.Content)
	if err := s.repos.Playlists.ReplaceItems(ctx, id, items); err != nil {
		s.log.Warn().Int64("playlist_id", id).Err(err).Msg("failed to store remote playlist content")
	}
}

// pullContent merges the server's item list into a SYNCED local
// playlist when the server copy is newer. Local-only items always
// survive the merge, appended after the remote items.
func (s *Service) pullContent(ctx context.Context, p *models.Playlist) {
	full, err := s.music.GetPlaylist(ctx, *p.ServerID)
	if err != nil {
		s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("playlist content pull failed")
		return
	}

	if !remoteNewer(full.UpdatedAt, p.LastModifiedAt) {
		return
	}

	existing, err := s.repos.Playlists.Items(ctx, p.ID)
	if err != nil {
		s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("failed to load local items for merge")
		return
	}

	merged := itemsFromRemote(p.ID, full.Content)
	for _, item := range existing {
		if !item.IsLocalOnly {
			continue
		}
		item.ItemOrder = len(merged)
		merged = append(merged, item)
	}

	if err := s.repos.Playlists.ReplaceItems(ctx, p.ID, merged); err != nil {
		s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("playlist merge failed")
		return
	}
	if err := s.repos.Playlists.SetSyncState(ctx, p.ID, models.SyncSynced, nil); err != nil {
		s.log.Warn().Int64("playlist_id", p.ID).Err(err).Msg("failed to restore sync state after merge")
	}
}

// itemsFromRemote converts server songs to local items with dense
// zero-based order. The item id derives from the parent video and
// start offset so re-pulls stay stable.
func itemsFromRemote(playlistID int64, songs []holodex.Song) []models.PlaylistItem {
	items := make([]models.PlaylistItem, 0, len(songs))
	now := time.Now().UnixMilli()
	for i := range songs {
		song := songs[i]
		start := song.Start
		end := song.End
		name := song.Name
		artist := song.OriginalArtist

		items = append(items, models.PlaylistItem{
			PlaylistID:     playlistID,
			ItemID:         models.SegmentID(song.VideoID, song.Start),
			VideoID:        song.VideoID,
			ItemType:       models.ItemSongSegment,
			StartSeconds:   &start,
			EndSeconds:     &end,
			Name:           &name,
			ArtistText:     &artist,
			ArtworkURL:     song.Art,
			AddedAt:        now,
			ItemOrder:      len(items),
			LastModifiedAt: now,
			SyncStatus:     models.SyncSynced,
		})
	}
	return items
}

// remoteNewer compares RFC3339 server timestamps; missing or malformed
// values count as not newer
func remoteNewer(remote, local *string) bool {
	if remote == nil {
		return false
	}
	rt, err := time.Parse(time.RFC3339, *remote)
	if err != nil {
		return false
	}
	if local == nil {
		return true
	}
	lt, err := time.Parse(time.RFC3339, *local)
	if err != nil {
		return true
	}
	return rt.After(lt)
}
