package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"utadex/internal/models"
)

// MetadataRepository handles database operations for unified metadata rows
type MetadataRepository struct {
	db       *DB
	notifier *Notifier
}

// NewMetadataRepository creates a new metadata repository
func NewMetadataRepository(db *DB, notifier *Notifier) *MetadataRepository {
	return &MetadataRepository{db: db, notifier: notifier}
}

// Upsert inserts or fully replaces a metadata row keyed by id
func (r *MetadataRepository) Upsert(ctx context.Context, m *models.UnifiedMetadata) error {
	m.LastUpdatedAt = time.Now().UnixMilli()
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert metadata: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicMetadata)
	return nil
}

// UpsertBatch inserts or replaces a batch of metadata rows in one statement
func (r *MetadataRepository) UpsertBatch(ctx context.Context, items []models.UnifiedMetadata) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	for i := range items {
		items[i].LastUpdatedAt = now
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).CreateInBatches(items, 100)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert metadata batch: %w", MapGormError(result.Error))
	}
	r.notifier.Publish(TopicMetadata)
	return nil
}

// GetByID retrieves a metadata row by its id
func (r *MetadataRepository) GetByID(ctx context.Context, id string) (*models.UnifiedMetadata, error) {
	var m models.UnifiedMetadata
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&m)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &m, nil
}

// GetByIDs retrieves metadata rows for the given ids. Missing ids are
// simply absent from the result; no error is raised for them.
func (r *MetadataRepository) GetByIDs(ctx context.Context, ids []string) ([]models.UnifiedMetadata, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.UnifiedMetadata
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get metadata by ids: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// SegmentsForVideo retrieves all song segments belonging to a video,
// ordered by their start offset
func (r *MetadataRepository) SegmentsForVideo(ctx context.Context, videoID string) ([]models.UnifiedMetadata, error) {
	var rows []models.UnifiedMetadata
	result := r.db.WithContext(ctx).
		Where("type = ? AND parent_video_id = ?", models.TypeSegment, videoID).
		Order("start_seconds ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get segments for video: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// SegmentByVideoAndStart retrieves the segment of a video starting at
// the given second, if one exists
func (r *MetadataRepository) SegmentByVideoAndStart(ctx context.Context, videoID string, startSeconds int) (*models.UnifiedMetadata, error) {
	var m models.UnifiedMetadata
	result := r.db.WithContext(ctx).
		Where("type = ? AND parent_video_id = ? AND start_seconds = ?", models.TypeSegment, videoID, startSeconds).
		First(&m)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &m, nil
}

const withStatusSelect = `unified_metadata.*,
EXISTS(SELECT 1 FROM user_interactions li WHERE li.item_id = unified_metadata.id AND li.interaction_type = 'LIKE' AND li.sync_status != 'PENDING_DELETE') AS is_liked,
EXISTS(SELECT 1 FROM user_interactions di WHERE di.item_id = unified_metadata.id AND di.interaction_type = 'DOWNLOAD' AND di.download_status = 'COMPLETED') AS is_downloaded,
(SELECT di.download_status FROM user_interactions di WHERE di.item_id = unified_metadata.id AND di.interaction_type = 'DOWNLOAD') AS dl_status,
(SELECT di.local_file_path FROM user_interactions di WHERE di.item_id = unified_metadata.id AND di.interaction_type = 'DOWNLOAD') AS dl_local_path`

// ItemsWithStatus retrieves metadata rows for the given ids decorated
// with like and download state. Rows come back in no particular order.
func (r *MetadataRepository) ItemsWithStatus(ctx context.Context, ids []string) ([]models.ItemWithStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ItemWithStatus
	result := r.db.WithContext(ctx).
		Table("unified_metadata").
		Select(withStatusSelect).
		Where("unified_metadata.id IN ?", ids).
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get items with status: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// LikedItems retrieves all liked items (excluding pending deletions)
// with their status columns, newest interaction first
func (r *MetadataRepository) LikedItems(ctx context.Context) ([]models.ItemWithStatus, error) {
	var rows []models.ItemWithStatus
	result := r.db.WithContext(ctx).
		Table("unified_metadata").
		Select(withStatusSelect).
		Joins("JOIN user_interactions ui ON ui.item_id = unified_metadata.id").
		Where("ui.interaction_type = ? AND ui.sync_status != ?", models.InteractionLike, models.SyncPendingDelete).
		Order("ui.timestamp DESC").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get liked items: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// LikedItemIDs retrieves the ids of all liked items, excluding
// pending deletions
func (r *MetadataRepository) LikedItemIDs(ctx context.Context) ([]string, error) {
	var ids []string
	result := r.db.WithContext(ctx).
		Model(&models.UserInteraction{}).
		Where("interaction_type = ? AND sync_status != ?", models.InteractionLike, models.SyncPendingDelete).
		Pluck("item_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get liked item ids: %w", MapGormError(result.Error))
	}
	return ids, nil
}

// DownloadedItems retrieves all items with a completed download, newest first
func (r *MetadataRepository) DownloadedItems(ctx context.Context) ([]models.ItemWithStatus, error) {
	var rows []models.ItemWithStatus
	result := r.db.WithContext(ctx).
		Table("unified_metadata").
		Select(withStatusSelect).
		Joins("JOIN user_interactions ui ON ui.item_id = unified_metadata.id").
		Where("ui.interaction_type = ? AND ui.download_status = ?", models.InteractionDownload, models.DownloadCompleted).
		Order("ui.timestamp DESC").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get downloaded items: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// FavoriteChannels retrieves the metadata of all favorited channels,
// excluding pending deletions, ordered by channel title
func (r *MetadataRepository) FavoriteChannels(ctx context.Context) ([]models.UnifiedMetadata, error) {
	var rows []models.UnifiedMetadata
	result := r.db.WithContext(ctx).
		Joins("JOIN user_interactions ui ON ui.item_id = unified_metadata.id").
		Where("ui.interaction_type = ? AND ui.sync_status != ?", models.InteractionFavChannel, models.SyncPendingDelete).
		Where("unified_metadata.type = ?", models.TypeChannel).
		Order("unified_metadata.title ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get favorite channels: %w", MapGormError(result.Error))
	}
	return rows, nil
}

// Prune deletes metadata rows older than the cutoff that are not
// referenced by any interaction or playlist item
func (r *MetadataRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("last_updated_at < ?", olderThan.UnixMilli()).
		Where("id NOT IN (SELECT item_id FROM user_interactions)").
		Where("id NOT IN (SELECT item_id_in_playlist FROM playlist_items)").
		Where("id NOT IN (SELECT parent_video_id FROM unified_metadata WHERE parent_video_id IS NOT NULL AND id IN (SELECT item_id FROM user_interactions))").
		Delete(&models.UnifiedMetadata{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune metadata: %w", MapGormError(result.Error))
	}
	return result.RowsAffected, nil
}
