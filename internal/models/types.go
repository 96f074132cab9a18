package models

// MetadataType discriminates what a unified metadata row describes.
type MetadataType string

const (
	TypeChannel MetadataType = "CHANNEL"
	TypeVideo   MetadataType = "VIDEO"
	TypeSegment MetadataType = "SEGMENT"
)

// InteractionType is the kind of relationship a user has with an item.
type InteractionType string

const (
	InteractionLike       InteractionType = "LIKE"
	InteractionDownload   InteractionType = "DOWNLOAD"
	InteractionFavChannel InteractionType = "FAV_CHANNEL"
)

// SyncStatus drives client/server reconciliation for user-owned rows.
// Transitions: DIRTY -> SYNCED on confirmed upstream write;
// any state -> PENDING_DELETE -> removed on confirmed upstream delete.
type SyncStatus string

const (
	SyncSynced        SyncStatus = "SYNCED"
	SyncDirty         SyncStatus = "DIRTY"
	SyncPendingDelete SyncStatus = "PENDING_DELETE"
)

// ItemType distinguishes playlist entries that are whole videos from
// time-bounded song segments.
type ItemType string

const (
	ItemVideo       ItemType = "VIDEO"
	ItemSongSegment ItemType = "SONG_SEGMENT"
)

// DownloadStatus tracks the lifecycle of a download interaction.
type DownloadStatus string

const (
	DownloadNotDownloaded DownloadStatus = "NOT_DOWNLOADED"
	DownloadEnqueued      DownloadStatus = "ENQUEUED"
	DownloadDownloading   DownloadStatus = "DOWNLOADING"
	DownloadCompleted     DownloadStatus = "COMPLETED"
	DownloadFailed        DownloadStatus = "FAILED"
	DownloadProcessing    DownloadStatus = "PROCESSING"
	DownloadPaused        DownloadStatus = "PAUSED"
	DownloadDeleting      DownloadStatus = "DELETING"
)

// OrgExternal is the sentinel organization assigned to channels that come
// from the scraping adapter instead of the first-party API.
const OrgExternal = "External"
