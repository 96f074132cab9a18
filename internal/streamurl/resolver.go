// Package streamurl resolves playable audio stream URLs with a short
// in-memory memoization window. Stream URLs expire server-side, so
// they are never persisted.
package streamurl

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"utadex/internal/extractor"
	"utadex/internal/logger"
)

const resolveTimeout = 30 * time.Second

// StreamSource resolves a video to a playable audio stream. Satisfied
// by the extraction adapter.
type StreamSource interface {
	ResolveBestAudioStream(ctx context.Context, videoID string, pref extractor.Quality) (*extractor.AudioStreamDetails, error)
}

// Resolver memoizes resolved stream URLs in an expiring LRU and
// collapses concurrent requests for the same video into one extraction
// call.
type Resolver struct {
	ext     StreamSource
	quality extractor.Quality

	cache  *expirable.LRU[string, string]
	flight singleflight.Group

	log zerolog.Logger
}

// NewResolver creates a resolver memoizing up to capacity URLs for ttl
func NewResolver(ext StreamSource, quality extractor.Quality, capacity int, ttl time.Duration) *Resolver {
	if capacity <= 0 {
		capacity = 50
	}
	return &Resolver{
		ext:     ext,
		quality: quality,
		cache:   expirable.NewLRU[string, string](capacity, nil, ttl),
		log:     logger.With("streamurl"),
	}
}

// Resolve returns a playable audio URL for the video, from cache when
// the memoized URL has not aged out
func (r *Resolver) Resolve(ctx context.Context, videoID string) (string, error) {
	if u, ok := r.cache.Get(videoID); ok {
		return u, nil
	}

	v, err, _ := r.flight.Do(videoID, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry while this one queued
		if u, ok := r.cache.Get(videoID); ok {
			return u, nil
		}

		rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
		defer cancel()

		details, rErr := r.ext.ResolveBestAudioStream(rctx, videoID, r.quality)
		if rErr != nil {
			return "", rErr
		}

		r.log.Debug().
			Str("video_id", videoID).
			Int("bitrate_kbps", details.BitrateKbps).
			Msg("resolved audio stream")
		r.cache.Add(videoID, details.URL)
		return details.URL, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops one memoized URL, forcing the next resolve to hit
// the extractor
func (r *Resolver) Invalidate(videoID string) {
	r.cache.Remove(videoID)
}

// Clear drops every memoized URL
func (r *Resolver) Clear() {
	r.cache.Purge()
}
