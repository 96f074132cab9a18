package feed

import (
	"strconv"
	"strings"
	"time"

	"utadex/internal/extractor"
	"utadex/internal/holodex"
	"utadex/internal/models"
)

// MetadataFromVideo maps a first-party video item to a metadata row
func MetadataFromVideo(v *holodex.VideoItem) models.UnifiedMetadata {
	m := models.UnifiedMetadata{
		ID:          v.ID,
		Title:       v.Title,
		ArtistName:  v.Channel.Name,
		Type:        models.TypeVideo,
		Duration:    v.Duration,
		ChannelID:   v.Channel.ID,
		Org:         v.Channel.Org,
		TopicID:     v.TopicID,
		Status:      v.Status,
		AvailableAt: v.AvailableAt,
		PublishedAt: v.PublishedAt,
		SongCount:   v.SongCount,
	}
	if m.Status == "" {
		m.Status = "past"
	}
	if v.Channel.Photo != nil {
		m.UploaderAvatarURL = v.Channel.Photo
	}
	return m
}

// MetadataFromSong maps a tagged song segment to a segment metadata
// row. The row id is derived from the video id and start offset so a
// segment has a stable identity without a server id.
func MetadataFromSong(s *holodex.Song, channelName string, org *string) models.UnifiedMetadata {
	start := int64(s.Start)
	end := int64(s.End)
	videoID := s.VideoID

	artist := s.OriginalArtist
	if artist == "" {
		artist = channelName
	}

	return models.UnifiedMetadata{
		ID:             models.SegmentID(videoID, s.Start),
		Title:          s.Name,
		ArtistName:     artist,
		Type:           models.TypeSegment,
		SpecificArtURL: s.Art,
		Duration:       end - start,
		StartSeconds:   &start,
		EndSeconds:     &end,
		ParentVideoID:  &videoID,
		ChannelID:      s.ChannelID,
		Org:            org,
		Status:         "past",
	}
}

// MetadataFromChannel maps first-party channel details to a channel
// metadata row
func MetadataFromChannel(c *holodex.ChannelDetails) models.UnifiedMetadata {
	name := c.Name
	if c.EnglishName != nil && *c.EnglishName != "" {
		name = *c.EnglishName
	}
	return models.UnifiedMetadata{
		ID:                c.ID,
		Title:             name,
		ArtistName:        c.Name,
		Type:              models.TypeChannel,
		UploaderAvatarURL: c.Photo,
		ChannelID:         c.ID,
		Org:               c.Org,
		Status:            "past",
		Description:       c.Description,
	}
}

// MetadataFromExternalChannel maps scraped channel info to a channel
// metadata row under the synthetic External org
func MetadataFromExternalChannel(c *extractor.ChannelInfo) models.UnifiedMetadata {
	org := models.OrgExternal
	m := models.UnifiedMetadata{
		ID:         c.ID,
		Title:      c.Name,
		ArtistName: c.Name,
		Type:       models.TypeChannel,
		ChannelID:  c.ID,
		Org:        &org,
		Status:     "past",
	}
	if c.AvatarURL != "" {
		avatar := c.AvatarURL
		m.UploaderAvatarURL = &avatar
	}
	if c.Description != "" {
		desc := c.Description
		m.Description = &desc
	}
	return m
}

// MetadataFromScraped maps an externally-scraped video listing entry
// to a metadata row. Scraped channels carry the synthetic External org
// so downstream code routes them back through the extraction adapter.
func MetadataFromScraped(v *extractor.RawVideoItem, channelID, channelName string) models.UnifiedMetadata {
	org := models.OrgExternal
	availableAt := scrapedAvailableAt(v.PublishedText)
	m := models.UnifiedMetadata{
		ID:         v.ID,
		Title:      v.Title,
		ArtistName: channelName,
		Type:       models.TypeVideo,
		Duration:   v.DurationSeconds,
		ChannelID:  channelID,
		Org:        &org,
		Status:     "past",
	}
	if v.ThumbnailURL != "" {
		thumb := v.ThumbnailURL
		m.SpecificArtURL = &thumb
	}
	if availableAt != "" {
		m.AvailableAt = &availableAt
	}
	return m
}

// scrapedAvailableAt converts a relative published display string
// ("2 days ago") into an approximate absolute timestamp. Listings only
// expose relative text, so ordering across sources stays roughly
// consistent rather than exact.
func scrapedAvailableAt(published string) string {
	d, ok := parseRelativeAge(published)
	if !ok {
		return ""
	}
	return time.Now().Add(-d).UTC().Format(time.RFC3339)
}

// parseRelativeAge parses listing age strings like "3 hours ago" or
// "Streamed 2 weeks ago"
func parseRelativeAge(s string) (time.Duration, bool) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) < 3 || fields[len(fields)-1] != "ago" {
		return 0, false
	}

	n, err := strconv.Atoi(fields[len(fields)-3])
	if err != nil {
		return 0, false
	}

	unit := strings.TrimSuffix(fields[len(fields)-2], "s")
	switch unit {
	case "second":
		return time.Duration(n) * time.Second, true
	case "minute":
		return time.Duration(n) * time.Minute, true
	case "hour":
		return time.Duration(n) * time.Hour, true
	case "day":
		return time.Duration(n) * 24 * time.Hour, true
	case "week":
		return time.Duration(n) * 7 * 24 * time.Hour, true
	case "month":
		return time.Duration(n) * 30 * 24 * time.Hour, true
	case "year":
		return time.Duration(n) * 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
