package models

// Playlist is a user-owned ordered collection. Playlists are fully CRUD-able
// offline; SyncStatus and IsDeleted drive eventual consistency with the
// server. ServerID is nil until the server assigns one.
type Playlist struct {
	ID int64 `gorm:"primaryKey;autoIncrement;column:playlist_id"`

	ServerID    *string `gorm:"type:text;column:server_id"`
	Name        string  `gorm:"type:text;not null;column:name"`
	Description *string `gorm:"type:text;column:description"`
	Owner       *int64  `gorm:"type:integer;column:owner"`
	Type        string  `gorm:"type:text;not null;default:'ugp';column:type"`

	// Server timestamps are carried verbatim as RFC3339 strings so the
	// newer-than comparison matches the server's own ordering.
	CreatedAt      *string `gorm:"type:text;column:created_at"`
	LastModifiedAt *string `gorm:"type:text;column:updated_at"`

	IsDeleted  bool       `gorm:"type:integer;not null;default:0;column:is_deleted"`
	SyncStatus SyncStatus `gorm:"type:text;not null;default:'DIRTY';column:sync_status"`
}

// TableName overrides the GORM table name
func (Playlist) TableName() string { return "playlists" }

// PlaylistItem is one entry of a playlist. ItemOrder is dense and zero-based
// within a playlist and is renumbered on every structural mutation. Items
// flagged IsLocalOnly were added offline or to a non-syncable playlist and
// must survive every remote reconciliation pass untouched.
type PlaylistItem struct {
	PlaylistID int64  `gorm:"primaryKey;column:playlist_owner_id"`
	ItemID     string `gorm:"type:text;primaryKey;column:item_id_in_playlist"`

	VideoID     string   `gorm:"type:text;not null;column:video_id_for_item"`
	ItemType    ItemType `gorm:"type:text;not null;column:item_type"`
	IsLocalOnly bool     `gorm:"type:integer;not null;default:0;column:is_local_only"`

	// Display snapshot so the list renders without joining metadata.
	StartSeconds *int    `gorm:"type:integer;column:song_start_seconds"`
	EndSeconds   *int    `gorm:"type:integer;column:song_end_seconds"`
	Name         *string `gorm:"type:text;column:song_name"`
	ArtistText   *string `gorm:"type:text;column:song_artist_text"`
	ArtworkURL   *string `gorm:"type:text;column:song_artwork_url"`

	AddedAt        int64 `gorm:"type:integer;not null;default:0;column:added_at"`
	ItemOrder      int   `gorm:"type:integer;not null;column:item_order"`
	LastModifiedAt int64 `gorm:"type:integer;not null;default:0;column:last_modified_at"`

	SyncStatus SyncStatus `gorm:"type:text;not null;default:'DIRTY';column:sync_status"`
}

// TableName overrides the GORM table name
func (PlaylistItem) TableName() string { return "playlist_items" }

// StarredPlaylist marks a server playlist the user has starred. Only the id
// and sync state are kept locally; content is always fetched on demand.
type StarredPlaylist struct {
	PlaylistID string     `gorm:"type:text;primaryKey;column:playlist_id"`
	SyncStatus SyncStatus `gorm:"type:text;not null;default:'DIRTY';column:sync_status"`
}

// TableName overrides the GORM table name
func (StarredPlaylist) TableName() string { return "starred_playlists" }
