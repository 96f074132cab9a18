package models

import (
	"fmt"
	"slices"
	"strings"
)

// DisplayItem is the unified read model handed to consumers for feed,
// channel, video and playlist rows. It is never persisted.
type DisplayItem struct {
	StableID       string
	PlaybackItemID string
	VideoID        string
	ChannelID      string

	Title      string
	ArtistText string

	ArtworkURLs  []string
	DurationText string
	DurationSec  int64

	IsSegment    bool
	SongStartSec *int64
	SongEndSec   *int64
	SongCount    int

	ItemType   ItemType
	IsExternal bool

	IsLiked        bool
	IsDownloaded   bool
	DownloadStatus *string
	LocalFilePath  *string
}

// ToDisplayItem maps a joined store row into the consumer-facing model.
func (s *ItemWithStatus) ToDisplayItem() DisplayItem {
	m := s.UnifiedMetadata

	itemType := ItemVideo
	if m.Type == TypeSegment {
		itemType = ItemSongSegment
	}

	return DisplayItem{
		StableID:       m.ID,
		PlaybackItemID: m.ID,
		VideoID:        parentOrSelf(&m),
		ChannelID:      m.ChannelID,
		Title:          m.Title,
		ArtistText:     m.ArtistName,
		ArtworkURLs:    m.ArtworkURLs(),
		DurationText:   FormatDuration(m.Duration),
		DurationSec:    m.Duration,
		IsSegment:      m.Type == TypeSegment,
		SongStartSec:   m.StartSeconds,
		SongEndSec:     m.EndSeconds,
		SongCount:      m.SongCount,
		ItemType:       itemType,
		IsExternal:     m.IsExternal(),
		IsLiked:        s.IsLiked,
		IsDownloaded:   s.IsDownloaded,
		DownloadStatus: s.DownloadStatus,
		LocalFilePath:  s.LocalFilePath,
	}
}

// Equal reports field-level equality. Used to gate snapshot emission
// so watchers only see real changes.
func (d *DisplayItem) Equal(o *DisplayItem) bool {
	return d.StableID == o.StableID &&
		d.PlaybackItemID == o.PlaybackItemID &&
		d.VideoID == o.VideoID &&
		d.ChannelID == o.ChannelID &&
		d.Title == o.Title &&
		d.ArtistText == o.ArtistText &&
		d.DurationText == o.DurationText &&
		d.DurationSec == o.DurationSec &&
		d.IsSegment == o.IsSegment &&
		d.SongCount == o.SongCount &&
		d.ItemType == o.ItemType &&
		d.IsExternal == o.IsExternal &&
		d.IsLiked == o.IsLiked &&
		d.IsDownloaded == o.IsDownloaded &&
		ptrEqual(d.SongStartSec, o.SongStartSec) &&
		ptrEqual(d.SongEndSec, o.SongEndSec) &&
		ptrEqual(d.DownloadStatus, o.DownloadStatus) &&
		ptrEqual(d.LocalFilePath, o.LocalFilePath) &&
		slices.Equal(d.ArtworkURLs, o.ArtworkURLs)
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func parentOrSelf(m *UnifiedMetadata) string {
	if m.ParentVideoID != nil && *m.ParentVideoID != "" {
		return *m.ParentVideoID
	}
	return m.ID
}

// ArtworkURLs builds the ordered artwork candidate list for an item. Channels
// use their own art; segments prefer high quality cover art when present;
// everything else falls back to the video thumbnail then the uploader avatar.
func (m *UnifiedMetadata) ArtworkURLs() []string {
	var urls []string

	add := func(u *string) {
		if u == nil || *u == "" {
			return
		}
		for _, existing := range urls {
			if existing == *u {
				return
			}
		}
		urls = append(urls, *u)
	}

	if m.Type == TypeChannel {
		add(m.SpecificArtURL)
		add(m.UploaderAvatarURL)
		return urls
	}

	if m.Type == TypeSegment && m.SpecificArtURL != nil && strings.Contains(*m.SpecificArtURL, "mzstatic.com") {
		add(m.SpecificArtURL)
	}

	videoID := parentOrSelf(m)
	thumb := fmt.Sprintf("https://i.ytimg.com/vi/%s/mqdefault.jpg", videoID)
	add(&thumb)

	add(m.SpecificArtURL)
	add(m.UploaderAvatarURL)

	return urls
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
