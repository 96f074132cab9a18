package db

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"utadex/internal/models"
)

// StarredRepository handles database operations for starred (followed)
// remote playlists
type StarredRepository struct {
	db       *DB
	notifier *Notifier
}

// NewStarredRepository creates a new starred playlist repository
func NewStarredRepository(db *DB, notifier *Notifier) *StarredRepository {
	return &StarredRepository{db: db, notifier: notifier}
}

// Star records a playlist as starred locally, pending upload
func (r *StarredRepository) Star(ctx context.Context, playlistID string) error {
	row := &models.StarredPlaylist{
		PlaylistID: playlistID,
		SyncStatus: models.SyncDirty,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "playlist_id"}},
		UpdateAll: true,
	}).Create(row)
	if result.Error != nil {
		return fmt.Errorf("failed to star playlist: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicStarred)
	return nil
}

// Unstar flags a starred playlist for remote removal
func (r *StarredRepository) Unstar(ctx context.Context, playlistID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.StarredPlaylist{}).
		Where("playlist_id = ?", playlistID).
		Update("sync_status", models.SyncPendingDelete)
	if result.Error != nil {
		return fmt.Errorf("failed to unstar playlist: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicStarred)
	return nil
}

// List retrieves all starred playlist ids, excluding pending removals
func (r *StarredRepository) List(ctx context.Context) ([]string, error) {
	var ids []string
	result := r.db.WithContext(ctx).
		Model(&models.StarredPlaylist{}).
		Where("sync_status != ?", models.SyncPendingDelete).
		Pluck("playlist_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list starred playlists: %w", MapGormError(result.Error))
	}
	return ids, nil
}

// ByStatus retrieves starred rows in one sync state
func (r *StarredRepository) ByStatus(ctx context.Context, status models.SyncStatus) ([]models.StarredPlaylist, error) {
	var rows []models.StarredPlaylist
	result := r.db.WithContext(ctx).
		Where("sync_status = ?", status).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get starred playlists by status: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// MarkSynced marks a starred row confirmed by the server
func (r *StarredRepository) MarkSynced(ctx context.Context, playlistID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.StarredPlaylist{}).
		Where("playlist_id = ?", playlistID).
		Update("sync_status", models.SyncSynced)
	if result.Error != nil {
		return fmt.Errorf("failed to mark starred synced: %w", MapGormError(result.Error))
	}
	return nil
}

// ConfirmRemoval deletes a PENDING_DELETE starred row
func (r *StarredRepository) ConfirmRemoval(ctx context.Context, playlistID string) error {
	result := r.db.WithContext(ctx).
		Where("playlist_id = ? AND sync_status = ?", playlistID, models.SyncPendingDelete).
		Delete(&models.StarredPlaylist{})
	if result.Error != nil {
		return fmt.Errorf("failed to confirm starred removal: %w", MapGormError(result.Error))
	}
	return nil
}

// ReplaceSynced reconciles the SYNCED set against the server's list:
// new ids are inserted as SYNCED, SYNCED rows missing from the list are
// removed. DIRTY and PENDING_DELETE rows are untouched.
func (r *StarredRepository) ReplaceSynced(ctx context.Context, serverIDs []string) error {
	remote := make(map[string]struct{}, len(serverIDs))
	for _, id := range serverIDs {
		remote[id] = struct{}{}
	}

	synced, err := r.ByStatus(ctx, models.SyncSynced)
	if err != nil {
		return err
	}

	for _, row := range synced {
		if _, ok := remote[row.PlaylistID]; ok {
			continue
		}
		result := r.db.WithContext(ctx).
			Where("playlist_id = ? AND sync_status = ?", row.PlaylistID, models.SyncSynced).
			Delete(&models.StarredPlaylist{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove unstarred playlist: %w", MapGormError(result.Error))
		}
	}

	for _, id := range serverIDs {
		row := &models.StarredPlaylist{PlaylistID: id, SyncStatus: models.SyncSynced}
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "playlist_id"}},
			DoNothing: true,
		}).Create(row)
		if result.Error != nil {
			return fmt.Errorf("failed to insert starred playlist: %w", MapGormError(result.Error))
		}
	}

	r.notifier.Publish(TopicStarred)
	return nil
}
