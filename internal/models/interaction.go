package models

// UserInteraction records a user's relationship to an item: a like, a
// download, or a favorited channel. The composite primary key allows one row
// per (item, kind) pair. Sync status transitions are owned by the sync layer;
// a row with a non-nil ServerID and status SYNCED is authoritative-matched
// with the remote system.
type UserInteraction struct {
	ItemID          string          `gorm:"type:text;primaryKey;column:item_id"`
	InteractionType InteractionType `gorm:"type:text;primaryKey;column:interaction_type"`

	Timestamp int64 `gorm:"type:integer;not null;column:timestamp"`

	// Download bookkeeping, meaningful only for DOWNLOAD rows.
	LocalFilePath        *string `gorm:"type:text;column:local_file_path"`
	DownloadStatus       *string `gorm:"type:text;column:download_status"`
	DownloadFileName     *string `gorm:"type:text;column:download_file_name"`
	DownloadTrackNum     *int    `gorm:"type:integer;column:download_track_num"`
	DownloadTargetFormat *string `gorm:"type:text;column:download_target_format"`
	DownloadProgress     int     `gorm:"type:integer;not null;default:0;column:download_progress"`

	ServerID *string `gorm:"type:text;column:server_id"`

	SyncStatus SyncStatus `gorm:"type:text;not null;default:'SYNCED';column:sync_status"`
}

// TableName overrides the GORM table name
func (UserInteraction) TableName() string { return "user_interactions" }

// ItemWithStatus is a read projection joining a metadata row with the
// user-interaction flags the UI needs. The booleans are computed in SQL so
// list reads stay a single query.
type ItemWithStatus struct {
	UnifiedMetadata

	IsLiked        bool    `gorm:"column:is_liked"`
	IsDownloaded   bool    `gorm:"column:is_downloaded"`
	DownloadStatus *string `gorm:"column:dl_status"`
	LocalFilePath  *string `gorm:"column:dl_local_path"`
}
