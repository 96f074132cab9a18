package syncer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"utadex/internal/db"
	"utadex/internal/feed"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// pendingDeleteRevertWindow is how long an unacknowledged unlike may
// stay PENDING_DELETE before it flips back to SYNCED and resurfaces
const pendingDeleteRevertWindow = 35 * time.Minute

const maxLikesPages = 50

// SongResolver maps a (video, start offset) tuple to the server's song
// id
type SongResolver interface {
	FindSongByStart(ctx context.Context, videoID string, startSeconds int) (*int, error)
}

// LikesSynchronizer reconciles liked songs in three phases: repair
// DIRTY rows missing a server id, push local adds and removals, then
// pull the server's full like list and converge on it.
type LikesSynchronizer struct {
	repos *db.Repositories
	music *holodex.MusicClient
	songs SongResolver
	log   zerolog.Logger
}

// NewLikesSynchronizer creates the likes synchronizer
func NewLikesSynchronizer(repos *db.Repositories, music *holodex.MusicClient, songs SongResolver) *LikesSynchronizer {
	return &LikesSynchronizer{
		repos: repos,
		music: music,
		songs: songs,
		log:   logger.With("sync-likes"),
	}
}

func (s *LikesSynchronizer) Name() string { return "likes" }

// Sync runs the full likes round
func (s *LikesSynchronizer) Sync(ctx context.Context) error {
	s.repairOrphans(ctx)
	s.pushLocal(ctx)
	return s.pullRemote(ctx)
}

// repairOrphans resolves server song ids for DIRTY rows that never got
// one, so the push phase can address them
func (s *LikesSynchronizer) repairOrphans(ctx context.Context) {
	dirty, err := s.repos.Interactions.Dirty(ctx, models.InteractionLike)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load dirty likes")
		return
	}

	for _, row := range dirty {
		if row.ServerID != nil {
			continue
		}
		serverID, err := s.resolveServerID(ctx, row.ItemID)
		if err != nil {
			s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("like orphan repair failed")
			continue
		}
		if err := s.repos.Interactions.UpdateServerID(ctx, row.ItemID, models.InteractionLike, serverID); err != nil {
			s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("failed to store repaired server id")
		}
	}
}

// resolveServerID finds the server song id for a liked item via its
// stored metadata
func (s *LikesSynchronizer) resolveServerID(ctx context.Context, itemID string) (string, error) {
	meta, err := s.repos.Metadata.GetByID(ctx, itemID)
	if err != nil {
		return "", err
	}
	if !meta.IsSegment() || meta.ParentVideoID == nil || meta.StartSeconds == nil {
		return "", errors.New("liked item is not a resolvable segment")
	}

	id, err := s.songs.FindSongByStart(ctx, *meta.ParentVideoID, int(*meta.StartSeconds))
	if err != nil {
		return "", err
	}
	return strconv.Itoa(*id), nil
}

// pushLocal sends removals first, then adds
func (s *LikesSynchronizer) pushLocal(ctx context.Context) {
	pending, err := s.repos.Interactions.PendingDelete(ctx, models.InteractionLike)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load pending like deletions")
	} else {
		for _, row := range pending {
			if row.ServerID == nil {
				// Never reached the server, nothing to undo remotely
				if err := s.repos.Interactions.ConfirmDeletion(ctx, row.ItemID, models.InteractionLike); err != nil {
					s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("failed to drop local-only unlike")
				}
				continue
			}
			songID, convErr := strconv.Atoi(*row.ServerID)
			if convErr != nil {
				s.log.Warn().Str("item_id", row.ItemID).Str("server_id", *row.ServerID).Msg("malformed like server id")
				continue
			}
			if err := s.music.UnlikeSong(ctx, songID); err != nil {
				s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("unlike push failed")
				continue
			}
			if err := s.repos.Interactions.ConfirmDeletion(ctx, row.ItemID, models.InteractionLike); err != nil {
				s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("failed to confirm unlike")
			}
		}
	}

	dirty, err := s.repos.Interactions.Dirty(ctx, models.InteractionLike)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load dirty likes")
		return
	}
	for _, row := range dirty {
		if row.ServerID == nil {
			// Repair failed this round; retried next time
			continue
		}
		songID, convErr := strconv.Atoi(*row.ServerID)
		if convErr != nil {
			s.log.Warn().Str("item_id", row.ItemID).Str("server_id", *row.ServerID).Msg("malformed like server id")
			continue
		}
		if err := s.music.LikeSong(ctx, songID); err != nil {
			s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("like push failed")
			continue
		}
		if err := s.repos.Interactions.ConfirmUpload(ctx, row.ItemID, models.InteractionLike, *row.ServerID); err != nil {
			s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("failed to confirm like upload")
		}
	}
}

// pullRemote pages through the server's like list, inserts likes the
// local store never saw, removes SYNCED likes the server dropped, and
// finally reverts pending deletes the server never acknowledged
func (s *LikesSynchronizer) pullRemote(ctx context.Context) error {
	remote := make(map[string]holodex.Song)
	for page := 1; page <= maxLikesPages; page++ {
		likes, err := s.music.Likes(ctx, page)
		if err != nil {
			return err
		}
		if len(likes.Items) == 0 {
			break
		}
		for _, song := range likes.Items {
			remote[models.SegmentID(song.VideoID, song.Start)] = song
		}
		if len(remote) >= likes.Total {
			break
		}
	}

	for itemID, song := range remote {
		existing, err := s.repos.Interactions.Get(ctx, itemID, models.InteractionLike)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			s.log.Warn().Str("item_id", itemID).Err(err).Msg("like lookup failed")
			continue
		}
		if existing != nil {
			continue
		}

		meta := feed.MetadataFromSong(&song, "", nil)
		interaction := &models.UserInteraction{
			ItemID:          itemID,
			InteractionType: models.InteractionLike,
		}
		if song.ID != nil {
			serverID := strconv.Itoa(*song.ID)
			interaction.ServerID = &serverID
		}
		if err := s.repos.Interactions.InsertRemote(ctx, &meta, interaction); err != nil {
			s.log.Warn().Str("item_id", itemID).Err(err).Msg("failed to insert remote like")
		}
	}

	synced, err := s.repos.Interactions.Synced(ctx, models.InteractionLike)
	if err != nil {
		return err
	}
	for _, row := range synced {
		if _, still := remote[row.ItemID]; still {
			continue
		}
		if err := s.repos.Interactions.RemoveRemote(ctx, row.ItemID, models.InteractionLike); err != nil {
			s.log.Warn().Str("item_id", row.ItemID).Err(err).Msg("failed to remove stale like")
		}
	}

	remoteServerIDs := make([]string, 0, len(remote))
	for _, song := range remote {
		if song.ID != nil {
			remoteServerIDs = append(remoteServerIDs, strconv.Itoa(*song.ID))
		}
	}
	cutoff := time.Now().Add(-pendingDeleteRevertWindow)
	reverted, err := s.repos.Interactions.RevertStalePendingDeletes(ctx, models.InteractionLike, cutoff, remoteServerIDs)
	if err != nil {
		return err
	}
	if reverted > 0 {
		s.log.Info().Int64("count", reverted).Msg("reverted unacknowledged unlikes")
	}
	return nil
}
