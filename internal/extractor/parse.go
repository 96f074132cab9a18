package extractor

import (
	"strconv"
	"strings"
)

// The internal API returns deeply nested renderer trees whose exact
// shape shifts between layout experiments. Parsing walks the decoded
// JSON generically and collects renderer objects by key instead of
// binding to a fixed schema.

// collectObjects gathers every object found under the given key,
// anywhere in the tree, in document order
func collectObjects(v any, key string, out *[]map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if k == key {
				if obj, ok := child.(map[string]any); ok {
					*out = append(*out, obj)
				}
			}
			collectObjects(child, key, out)
		}
	case []any:
		for _, child := range t {
			collectObjects(child, key, out)
		}
	}
}

// dig walks a path of object keys, returning nil when any hop is missing
func dig(v any, path ...string) any {
	for _, key := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[key]
	}
	return v
}

func digString(v any, path ...string) string {
	s, _ := dig(v, path...).(string)
	return s
}

// rendererText reads a text field that is either {"simpleText": ...}
// or {"runs": [{"text": ...}, ...]}
func rendererText(m map[string]any, field string) string {
	if s := digString(m, field, "simpleText"); s != "" {
		return s
	}
	runs, _ := dig(m, field, "runs").([]any)
	var b strings.Builder
	for _, run := range runs {
		b.WriteString(digString(run, "text"))
	}
	return b.String()
}

// lastThumbnailURL returns the highest-resolution thumbnail url, which
// the API lists last
func lastThumbnailURL(m map[string]any, field string) string {
	thumbs, _ := dig(m, field, "thumbnails").([]any)
	if len(thumbs) == 0 {
		return ""
	}
	return digString(thumbs[len(thumbs)-1], "url")
}

// parseDurationText converts "3:45" or "1:02:33" to seconds. Returns 0
// for anything unparsable (live badges, "SHORTS", empty).
func parseDurationText(s string) int64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// videoFromRenderer maps one videoRenderer / gridVideoRenderer object
func videoFromRenderer(m map[string]any) (RawVideoItem, bool) {
	id := digString(m, "videoId")
	if id == "" {
		return RawVideoItem{}, false
	}
	return RawVideoItem{
		ID:              id,
		Title:           rendererText(m, "title"),
		DurationSeconds: parseDurationText(rendererText(m, "lengthText")),
		PublishedText:   rendererText(m, "publishedTimeText"),
		ThumbnailURL:    lastThumbnailURL(m, "thumbnail"),
	}, true
}

// parseVideoList extracts all video items plus any continuation token
// from a browse response
func parseVideoList(root any) ([]RawVideoItem, *string) {
	var items []RawVideoItem
	seen := make(map[string]struct{})

	for _, key := range []string{"videoRenderer", "gridVideoRenderer"} {
		var renderers []map[string]any
		collectObjects(root, key, &renderers)
		for _, r := range renderers {
			item, ok := videoFromRenderer(r)
			if !ok {
				continue
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
		}
	}

	// Shorts shelf items use a reel renderer with no length text
	var reels []map[string]any
	collectObjects(root, "reelItemRenderer", &reels)
	for _, r := range reels {
		id := digString(r, "videoId")
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, RawVideoItem{
			ID:           id,
			Title:        rendererText(r, "headline"),
			ThumbnailURL: lastThumbnailURL(r, "thumbnail"),
			IsShort:      true,
		})
	}

	var continuations []map[string]any
	collectObjects(root, "continuationItemRenderer", &continuations)
	for _, c := range continuations {
		if token := digString(c, "continuationEndpoint", "continuationCommand", "token"); token != "" {
			return items, &token
		}
	}
	return items, nil
}

// hasVideosTab reports whether the channel's tab strip contains a
// videos tab, matched by its web url
func hasVideosTab(root any) bool {
	var tabs []map[string]any
	collectObjects(root, "tabRenderer", &tabs)
	for _, tab := range tabs {
		url := digString(tab, "endpoint", "commandMetadata", "webCommandMetadata", "url")
		if strings.Contains(url, "/videos") {
			return true
		}
	}
	return false
}

// channelFromBrowse maps the channel metadata block of a browse response
func channelFromBrowse(root any) (ChannelInfo, bool) {
	meta, _ := dig(root, "metadata", "channelMetadataRenderer").(map[string]any)
	if meta == nil {
		return ChannelInfo{}, false
	}
	info := ChannelInfo{
		ID:          digString(meta, "externalId"),
		Name:        digString(meta, "title"),
		Description: digString(meta, "description"),
		AvatarURL:   lastThumbnailURL(meta, "avatar"),
	}
	if info.ID == "" {
		return ChannelInfo{}, false
	}

	var headers []map[string]any
	collectObjects(root, "c4TabbedHeaderRenderer", &headers)
	if len(headers) > 0 {
		info.SubscriberCount = rendererText(headers[0], "subscriberCountText")
		info.BannerURL = lastThumbnailURL(headers[0], "banner")
	}
	return info, true
}

// channelsFromSearch maps channelRenderer objects of a search response
func channelsFromSearch(root any) []ChannelSearchResult {
	var renderers []map[string]any
	collectObjects(root, "channelRenderer", &renderers)

	results := make([]ChannelSearchResult, 0, len(renderers))
	for _, r := range renderers {
		id := digString(r, "channelId")
		if id == "" {
			continue
		}
		subs := rendererText(r, "subscriberCountText")
		if subs == "" {
			// Newer layouts moved the subscriber display here
			subs = rendererText(r, "videoCountText")
		}
		results = append(results, ChannelSearchResult{
			ID:                id,
			Name:              rendererText(r, "title"),
			ThumbnailURL:      lastThumbnailURL(r, "thumbnail"),
			SubscriberDisplay: subs,
		})
	}
	return results
}
