package feed

import (
	"fmt"
	"strings"
)

// PageSize is the fixed page length for all feed reads
const PageSize = 50

// FeedKey identifies one feed page request. The key shape selects the
// source: Favorites set → aggregated favorites feed, Query set →
// free-text search, ChannelID set → single-channel listing, otherwise
// a standard org/topic browse.
type FeedKey struct {
	Org       string
	Sort      string
	Topic     string
	ChannelID string
	Query     string
	// Status filters browse results by liveness: "", "past", "live",
	// or "upcoming".
	Status    string
	Offset    int
	Favorites bool
}

// Category places search reads in their own cache category so their
// network fetches serialize independently of browse
func (k FeedKey) Category() string {
	if k.Query != "" {
		return "search"
	}
	return "browse"
}

// StringKey returns the stable cache key for this request
func (k FeedKey) StringKey() string {
	parts := []string{
		k.Category(),
		k.Org,
		k.Sort,
		k.Topic,
		k.ChannelID,
		strings.ToLower(k.Query),
		k.Status,
		fmt.Sprintf("%d", k.Offset),
	}
	if k.Favorites {
		parts = append(parts, "favorites")
	}
	return strings.Join(parts, "|")
}
