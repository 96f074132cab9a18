package models

import (
	"fmt"
	"time"
)

// UnifiedMetadata is the canonical description of any playable unit: a full
// video, a time-bounded song segment within a video, or a channel. Rows are
// upserted whenever any repository resolves fresh data for an id and are only
// removed by explicit cache pruning.
//
// Invariants: a SEGMENT always has a non-nil ParentVideoID and
// StartSeconds < EndSeconds; a CHANNEL has Duration 0.
type UnifiedMetadata struct {
	ID string `gorm:"type:text;primaryKey;column:id"`

	Title      string       `gorm:"type:text;not null;column:title"`
	ArtistName string       `gorm:"type:text;not null;column:artist_name"`
	Type       MetadataType `gorm:"type:text;not null;column:type"`

	SpecificArtURL    *string `gorm:"type:text;column:specific_art_url"`
	UploaderAvatarURL *string `gorm:"type:text;column:uploader_avatar_url"`

	Duration int64 `gorm:"type:integer;not null;default:0;column:duration"`

	StartSeconds  *int64  `gorm:"type:integer;column:start_seconds"`
	EndSeconds    *int64  `gorm:"type:integer;column:end_seconds"`
	ParentVideoID *string `gorm:"type:text;column:parent_video_id"`

	ChannelID string  `gorm:"type:text;not null;column:channel_id"`
	Org       *string `gorm:"type:text;column:org"`
	TopicID   *string `gorm:"type:text;column:topic_id"`

	Status string `gorm:"type:text;not null;default:'past';column:status"`

	AvailableAt *string `gorm:"type:text;column:available_at"`
	PublishedAt *string `gorm:"type:text;column:published_at"`

	SongCount int `gorm:"type:integer;not null;default:0;column:song_count"`

	Description *string `gorm:"type:text;column:description"`

	LastUpdatedAt int64 `gorm:"type:integer;not null;default:0;column:last_updated_at"`
}

// TableName overrides the GORM table name
func (UnifiedMetadata) TableName() string { return "unified_metadata" }

// IsSegment reports whether the row describes a song segment.
func (m *UnifiedMetadata) IsSegment() bool { return m.Type == TypeSegment }

// IsExternal reports whether the row belongs to a scraped channel.
func (m *UnifiedMetadata) IsExternal() bool {
	return m.Org != nil && *m.Org == OrgExternal
}

// AvailableAtTime parses the availability timestamp. Unparsable or missing
// timestamps sort as the zero time, i.e. oldest.
func (m *UnifiedMetadata) AvailableAtTime() time.Time {
	for _, s := range []*string{m.AvailableAt, m.PublishedAt} {
		if s == nil || *s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, *s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SegmentID builds the composite id used for song segments: videoId_start.
func SegmentID(videoID string, start int) string {
	return fmt.Sprintf("%s_%d", videoID, start)
}
