package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"utadex/internal/models"
)

// InteractionRepository handles database operations for user interactions
// (likes, downloads, favorited channels) including the sync-state
// primitives the synchronizers drive.
type InteractionRepository struct {
	db       *DB
	notifier *Notifier
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(db *DB, notifier *Notifier) *InteractionRepository {
	return &InteractionRepository{db: db, notifier: notifier}
}

func topicFor(kind models.InteractionType) Topic {
	switch kind {
	case models.InteractionDownload:
		return TopicDownloads
	case models.InteractionFavChannel:
		return TopicFavorites
	default:
		return TopicLikes
	}
}

// Upsert inserts or replaces an interaction row keyed by (item, kind)
func (r *InteractionRepository) Upsert(ctx context.Context, i *models.UserInteraction) error {
	if i.Timestamp == 0 {
		i.Timestamp = time.Now().UnixMilli()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}, {Name: "interaction_type"}},
		UpdateAll: true,
	}).Create(i)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert interaction: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(topicFor(i.InteractionType))
	return nil
}

// Get retrieves a single interaction row
func (r *InteractionRepository) Get(ctx context.Context, itemID string, kind models.InteractionType) (*models.UserInteraction, error) {
	var i models.UserInteraction
	result := r.db.WithContext(ctx).
		Where("item_id = ? AND interaction_type = ?", itemID, kind).
		First(&i)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &i, nil
}

// MarkDirty records a local add: the row is upserted with DIRTY status
// and no server id, making it a candidate for the next upstream push
func (r *InteractionRepository) MarkDirty(ctx context.Context, itemID string, kind models.InteractionType) error {
	i := &models.UserInteraction{
		ItemID:          itemID,
		InteractionType: kind,
		Timestamp:       time.Now().UnixMilli(),
		SyncStatus:      models.SyncDirty,
	}
	return r.Upsert(ctx, i)
}

// MarkPendingDelete records a local remove: the row stays in place with
// PENDING_DELETE status until the server confirms, so reads can hide it
// without losing the server id needed to delete remotely
func (r *InteractionRepository) MarkPendingDelete(ctx context.Context, itemID string, kind models.InteractionType) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("item_id = ? AND interaction_type = ?", itemID, kind).
		Updates(map[string]interface{}{
			"sync_status": models.SyncPendingDelete,
			"timestamp":   time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark pending delete: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(topicFor(kind))
	return nil
}

// ByStatus retrieves interactions of one kind in one sync state
func (r *InteractionRepository) ByStatus(ctx context.Context, kind models.InteractionType, status models.SyncStatus) ([]models.UserInteraction, error) {
	var rows []models.UserInteraction
	result := r.db.WithContext(ctx).
		Where("interaction_type = ? AND sync_status = ?", kind, status).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get interactions by status: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// Dirty retrieves locally-added interactions awaiting upload
func (r *InteractionRepository) Dirty(ctx context.Context, kind models.InteractionType) ([]models.UserInteraction, error) {
	return r.ByStatus(ctx, kind, models.SyncDirty)
}

// PendingDelete retrieves locally-removed interactions awaiting server deletion
func (r *InteractionRepository) PendingDelete(ctx context.Context, kind models.InteractionType) ([]models.UserInteraction, error) {
	return r.ByStatus(ctx, kind, models.SyncPendingDelete)
}

// Synced retrieves interactions the server has confirmed
func (r *InteractionRepository) Synced(ctx context.Context, kind models.InteractionType) ([]models.UserInteraction, error) {
	return r.ByStatus(ctx, kind, models.SyncSynced)
}

// ConfirmUpload marks a row SYNCED and records the id the server
// assigned it
func (r *InteractionRepository) ConfirmUpload(ctx context.Context, itemID string, kind models.InteractionType, serverID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("item_id = ? AND interaction_type = ?", itemID, kind).
		Updates(map[string]interface{}{
			"sync_status": models.SyncSynced,
			"server_id":   serverID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to confirm upload: %w", MapGormError(result.Error))
	}
	return nil
}

// UpdateServerID sets the server id on a row without touching its
// sync status. Used when repairing orphaned DIRTY rows before a push.
func (r *InteractionRepository) UpdateServerID(ctx context.Context, itemID string, kind models.InteractionType, serverID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("item_id = ? AND interaction_type = ?", itemID, kind).
		Update("server_id", serverID)
	if result.Error != nil {
		return fmt.Errorf("failed to update server id: %w", MapGormError(result.Error))
	}
	return nil
}

// ConfirmDeletion removes a PENDING_DELETE row once the server has
// acknowledged the delete (or reported the resource already gone)
func (r *InteractionRepository) ConfirmDeletion(ctx context.Context, itemID string, kind models.InteractionType) error {
	result := r.db.WithContext(ctx).
		Where("item_id = ? AND interaction_type = ? AND sync_status = ?", itemID, kind, models.SyncPendingDelete).
		Delete(&models.UserInteraction{})
	if result.Error != nil {
		return fmt.Errorf("failed to confirm deletion: %w", MapGormError(result.Error))
	}
	return nil
}

// InsertRemote records an interaction discovered on the server that the
// local store did not know about. The metadata row is written first so
// the interaction's foreign key resolves.
func (r *InteractionRepository) InsertRemote(ctx context.Context, meta *models.UnifiedMetadata, interaction *models.UserInteraction) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		meta.LastUpdatedAt = time.Now().UnixMilli()
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(meta).Error; err != nil {
			return fmt.Errorf("failed to upsert metadata for remote interaction: %w", MapGormError(err))
		}

		interaction.SyncStatus = models.SyncSynced
		if interaction.Timestamp == 0 {
			interaction.Timestamp = time.Now().UnixMilli()
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "interaction_type"}},
			UpdateAll: true,
		}).Create(interaction).Error; err != nil {
			return fmt.Errorf("failed to insert remote interaction: %w", MapGormError(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notifier.Publish(topicFor(interaction.InteractionType), TopicMetadata)
	return nil
}

// RemoveRemote deletes a SYNCED row the server no longer has. DIRTY and
// PENDING_DELETE rows are left alone so in-flight local intent survives
// a downstream pull.
func (r *InteractionRepository) RemoveRemote(ctx context.Context, itemID string, kind models.InteractionType) error {
	result := r.db.WithContext(ctx).
		Where("item_id = ? AND interaction_type = ? AND sync_status = ?", itemID, kind, models.SyncSynced).
		Delete(&models.UserInteraction{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove remote interaction: %w", MapGormError(result.Error))
	}
	if result.RowsAffected > 0 {
		r.notifier.Publish(topicFor(kind))
	}
	return nil
}

// MarkBatchSynced marks many rows SYNCED in one statement
func (r *InteractionRepository) MarkBatchSynced(ctx context.Context, itemIDs []string, kind models.InteractionType) error {
	if len(itemIDs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("item_id IN ? AND interaction_type = ?", itemIDs, kind).
		Update("sync_status", models.SyncSynced)
	if result.Error != nil {
		return fmt.Errorf("failed to mark batch synced: %w", MapGormError(result.Error))
	}
	return nil
}

// DeleteBatchPending removes many PENDING_DELETE rows at once
func (r *InteractionRepository) DeleteBatchPending(ctx context.Context, itemIDs []string, kind models.InteractionType) error {
	if len(itemIDs) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Where("item_id IN ? AND interaction_type = ? AND sync_status = ?", itemIDs, kind, models.SyncPendingDelete).
		Delete(&models.UserInteraction{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete pending batch: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(topicFor(kind))
	return nil
}

// RevertStalePendingDeletes flips PENDING_DELETE rows older than the
// cutoff back to SYNCED, but only where the server still lists the
// item: the delete never acknowledged within the window is assumed
// lost and the item resurfaces locally. Rows the server has genuinely
// dropped stay PENDING_DELETE so they never bounce back to SYNCED just
// to be reaped by the next convergence pass.
func (r *InteractionRepository) RevertStalePendingDeletes(ctx context.Context, kind models.InteractionType, olderThan time.Time, remoteServerIDs []string) (int64, error) {
	if len(remoteServerIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("interaction_type = ? AND sync_status = ? AND timestamp < ? AND server_id IN ?",
			kind, models.SyncPendingDelete, olderThan.UnixMilli(), remoteServerIDs).
		Update("sync_status", models.SyncSynced)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revert stale pending deletes: %w", MapGormError(result.Error))
	}
	if result.RowsAffected > 0 {
		r.notifier.Publish(topicFor(kind))
	}
	return result.RowsAffected, nil
}

// UpdateDownloadProgress updates the transient progress fields of a
// DOWNLOAD row
func (r *InteractionRepository) UpdateDownloadProgress(ctx context.Context, itemID string, status models.DownloadStatus, progress int) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("item_id = ? AND interaction_type = ?", itemID, models.InteractionDownload).
		Updates(map[string]interface{}{
			"download_status":   string(status),
			"download_progress": progress,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update download progress: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicDownloads)
	return nil
}

// CompleteDownload marks a DOWNLOAD row finished and records the local
// file path
func (r *InteractionRepository) CompleteDownload(ctx context.Context, itemID, localPath string) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("item_id = ? AND interaction_type = ?", itemID, models.InteractionDownload).
		Updates(map[string]interface{}{
			"download_status":   string(models.DownloadCompleted),
			"download_progress": 100,
			"local_file_path":   localPath,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete download: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicDownloads)
	return nil
}
