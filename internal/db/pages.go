package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"utadex/internal/models"
)

// PageRepository handles the disk tier of the page cache: serialized
// feed pages and discovery payloads keyed by page key.
type PageRepository struct {
	db *DB
}

// NewPageRepository creates a new page repository
func NewPageRepository(db *DB) *PageRepository {
	return &PageRepository{db: db}
}

// Get retrieves a cached page by key
func (r *PageRepository) Get(ctx context.Context, pageKey string) (*models.CachedPage, error) {
	var p models.CachedPage
	result := r.db.WithContext(ctx).Where("page_key = ?", pageKey).First(&p)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &p, nil
}

// Put inserts or replaces a cached page
func (r *PageRepository) Put(ctx context.Context, page *models.CachedPage) error {
	if page.Timestamp == 0 {
		page.Timestamp = time.Now().UnixMilli()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_key"}},
		UpdateAll: true,
	}).Create(page)
	if result.Error != nil {
		return fmt.Errorf("failed to put cached page: %w", MapGormError(result.Error))
	}
	return nil
}

// EvictCategory removes all cached pages belonging to one category
func (r *PageRepository) EvictCategory(ctx context.Context, category string) error {
	result := r.db.WithContext(ctx).
		Where("category = ?", category).
		Delete(&models.CachedPage{})
	if result.Error != nil {
		return fmt.Errorf("failed to evict category: %w", MapGormError(result.Error))
	}
	return nil
}

// EvictOlderThan removes cached pages written before the cutoff,
// across all categories
func (r *PageRepository) EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff.UnixMilli()).
		Delete(&models.CachedPage{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to evict stale pages: %w", MapGormError(result.Error))
	}
	return result.RowsAffected, nil
}

// EvictCategoryOlderThan removes one category's cached pages written
// before the cutoff
func (r *PageRepository) EvictCategoryOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("category = ? AND timestamp < ?", category, cutoff.UnixMilli()).
		Delete(&models.CachedPage{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to evict stale category pages: %w", MapGormError(result.Error))
	}
	return result.RowsAffected, nil
}

// GetDiscovery retrieves a stored discovery payload by key
func (r *PageRepository) GetDiscovery(ctx context.Context, pageKey string) (*models.DiscoveryPage, error) {
	var p models.DiscoveryPage
	result := r.db.WithContext(ctx).Where("page_key = ?", pageKey).First(&p)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &p, nil
}

// PutDiscovery inserts or replaces a discovery payload
func (r *PageRepository) PutDiscovery(ctx context.Context, page *models.DiscoveryPage) error {
	if page.Timestamp == 0 {
		page.Timestamp = time.Now().UnixMilli()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_key"}},
		UpdateAll: true,
	}).Create(page)
	if result.Error != nil {
		return fmt.Errorf("failed to put discovery page: %w", MapGormError(result.Error))
	}
	return nil
}
