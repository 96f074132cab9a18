package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"utadex/internal/models"
)

// PlaylistRepository handles database operations for playlists and
// their items
type PlaylistRepository struct {
	db       *DB
	notifier *Notifier
}

// NewPlaylistRepository creates a new playlist repository
func NewPlaylistRepository(db *DB, notifier *Notifier) *PlaylistRepository {
	return &PlaylistRepository{db: db, notifier: notifier}
}

// Create inserts a new playlist and returns its local id
func (r *PlaylistRepository) Create(ctx context.Context, p *models.Playlist) (int64, error) {
	result := r.db.WithContext(ctx).Create(p)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create playlist: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicPlaylists)
	return p.ID, nil
}

// GetByID retrieves a playlist by its local id. Soft-deleted playlists
// are still returned; callers that care filter on IsDeleted.
func (r *PlaylistRepository) GetByID(ctx context.Context, id int64) (*models.Playlist, error) {
	var p models.Playlist
	result := r.db.WithContext(ctx).Where("playlist_id = ?", id).First(&p)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &p, nil
}

// GetByServerID retrieves a playlist by the id the server assigned it
func (r *PlaylistRepository) GetByServerID(ctx context.Context, serverID string) (*models.Playlist, error) {
	var p models.Playlist
	result := r.db.WithContext(ctx).Where("server_id = ?", serverID).First(&p)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &p, nil
}

// List retrieves all live playlists, most recently modified first
func (r *PlaylistRepository) List(ctx context.Context) ([]models.Playlist, error) {
	var rows []models.Playlist
	result := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("updated_at DESC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// ByStatus retrieves playlists in one sync state, soft-deleted rows
// included so deletion intent is visible to the sync passes
func (r *PlaylistRepository) ByStatus(ctx context.Context, status models.SyncStatus) ([]models.Playlist, error) {
	var rows []models.Playlist
	result := r.db.WithContext(ctx).
		Where("sync_status = ?", status).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get playlists by status: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// UpdateMetadata updates only the mutable header fields of a playlist
// and marks it DIRTY. Uses a map so empty strings overwrite.
func (r *PlaylistRepository) UpdateMetadata(ctx context.Context, id int64, name string, description *string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Playlist{}).
		Where("playlist_id = ?", id).
		Updates(map[string]interface{}{
			"name":        name,
			"description": description,
			"updated_at":  time.Now().UTC().Format(time.RFC3339),
			"sync_status": models.SyncDirty,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update playlist metadata: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.notifier.Publish(TopicPlaylists)
	return nil
}

// SetSyncState updates a playlist's sync status, optionally adopting a
// server id at the same time
func (r *PlaylistRepository) SetSyncState(ctx context.Context, id int64, status models.SyncStatus, serverID *string) error {
	updates := map[string]interface{}{"sync_status": status}
	if serverID != nil {
		updates["server_id"] = *serverID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Playlist{}).
		Where("playlist_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set playlist sync state: %w", MapGormError(result.Error))
	}
	return nil
}

// SoftDelete flags a playlist deleted and PENDING_DELETE so the next
// sync pass can remove it remotely before the row is purged
func (r *PlaylistRepository) SoftDelete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Playlist{}).
		Where("playlist_id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted":  true,
			"sync_status": models.SyncPendingDelete,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to soft delete playlist: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.notifier.Publish(TopicPlaylists)
	return nil
}

// Purge permanently removes a playlist and its items
func (r *PlaylistRepository) Purge(ctx context.Context, id int64) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("playlist_owner_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
			return fmt.Errorf("failed to purge playlist items: %w", MapGormError(err))
		}
		if err := tx.Where("playlist_id = ?", id).Delete(&models.Playlist{}).Error; err != nil {
			return fmt.Errorf("failed to purge playlist: %w", MapGormError(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notifier.Publish(TopicPlaylists)
	return nil
}

// Items retrieves a playlist's items in play order
func (r *PlaylistRepository) Items(ctx context.Context, playlistID int64) ([]models.PlaylistItem, error) {
	var rows []models.PlaylistItem
	result := r.db.WithContext(ctx).
		Where("playlist_owner_id = ?", playlistID).
		Order("item_order ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// AddItem appends an item to a playlist, assigning it the next order
// slot. The playlist is marked DIRTY unless the item is local-only.
func (r *PlaylistRepository) AddItem(ctx context.Context, item *models.PlaylistItem) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var maxOrder *int
		if err := tx.Model(&models.PlaylistItem{}).
			Where("playlist_owner_id = ?", item.PlaylistID).
			Select("MAX(item_order)").
			Scan(&maxOrder).Error; err != nil {
			return fmt.Errorf("failed to get max item order: %w", MapGormError(err))
		}
		item.ItemOrder = 0
		if maxOrder != nil {
			item.ItemOrder = *maxOrder + 1
		}
		now := time.Now().UnixMilli()
		if item.AddedAt == 0 {
			item.AddedAt = now
		}
		item.LastModifiedAt = now
		if item.SyncStatus == "" {
			item.SyncStatus = models.SyncDirty
		}
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to add playlist item: %w", MapGormError(err))
		}
		// Local-only items never reach the server, so they don't make
		// the playlist eligible for an upsert push
		if item.IsLocalOnly {
			return nil
		}
		return r.markDirtyTx(tx, item.PlaylistID)
	})
	if err != nil {
		return err
	}
	r.notifier.Publish(TopicPlaylists)
	return nil
}

// RemoveItem deletes an item, renumbers the remainder densely from
// zero, and marks the playlist DIRTY
func (r *PlaylistRepository) RemoveItem(ctx context.Context, playlistID int64, itemID string) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := tx.Where("playlist_owner_id = ? AND item_id_in_playlist = ?", playlistID, itemID).
			Delete(&models.PlaylistItem{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove playlist item: %w", MapGormError(result.Error))
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := renumberTx(tx, playlistID); err != nil {
			return err
		}
		return r.markDirtyTx(tx, playlistID)
	})
	if err != nil {
		return err
	}
	r.notifier.Publish(TopicPlaylists)
	return nil
}

// ReplaceItems swaps a playlist's entire item set atomically. The
// caller is expected to have assigned dense zero-based item orders.
func (r *PlaylistRepository) ReplaceItems(ctx context.Context, playlistID int64, items []models.PlaylistItem) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("playlist_owner_id = ?", playlistID).Delete(&models.PlaylistItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear playlist items: %w", MapGormError(err))
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(items, 100).Error; err != nil {
			return fmt.Errorf("failed to insert playlist items: %w", MapGormError(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notifier.Publish(TopicPlaylists)
	return nil
}

// ItemsByStatus retrieves items of a playlist in one sync state
func (r *PlaylistRepository) ItemsByStatus(ctx context.Context, playlistID int64, status models.SyncStatus) ([]models.PlaylistItem, error) {
	var rows []models.PlaylistItem
	result := r.db.WithContext(ctx).
		Where("playlist_owner_id = ? AND sync_status = ?", playlistID, status).
		Order("item_order ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get playlist items by status: %w", MapGormError(result.Error))
	}
	return rows, nil
}

func (r *PlaylistRepository) markDirtyTx(tx *gorm.DB, playlistID int64) error {
	if err := tx.Model(&models.Playlist{}).
		Where("playlist_id = ?", playlistID).
		Updates(map[string]interface{}{
			"sync_status": models.SyncDirty,
			"updated_at":  time.Now().UTC().Format(time.RFC3339),
		}).Error; err != nil {
		return fmt.Errorf("failed to mark playlist dirty: %w", MapGormError(err))
	}
	return nil
}

// renumberTx rewrites item_order densely from zero preserving the
// current relative order
func renumberTx(tx *gorm.DB, playlistID int64) error {
	var items []models.PlaylistItem
	if err := tx.Where("playlist_owner_id = ?", playlistID).
		Order("item_order ASC").
		Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load items for renumber: %w", MapGormError(err))
	}
	for i := range items {
		if items[i].ItemOrder == i {
			continue
		}
		if err := tx.Model(&models.PlaylistItem{}).
			Where("playlist_owner_id = ? AND item_id_in_playlist = ?", playlistID, items[i].ItemID).
			Update("item_order", i).Error; err != nil {
			return fmt.Errorf("failed to renumber item: %w", MapGormError(err))
		}
	}
	return nil
}
