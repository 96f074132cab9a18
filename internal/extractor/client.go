package extractor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"utadex/internal/logger"
)

// Search params restricting results to channels.
const channelSearchParams = "EgIQAg=="

// ChannelInfo is a scraped channel's identity and display details
type ChannelInfo struct {
	ID              string
	Name            string
	Description     string
	AvatarURL       string
	BannerURL       string
	SubscriberCount string
}

// ChannelSearchResult is one hit of a channel search
type ChannelSearchResult struct {
	ID                string
	Name              string
	ThumbnailURL      string
	SubscriberDisplay string
}

// RawVideoItem is one scraped video listing entry
type RawVideoItem struct {
	ID              string
	Title           string
	DurationSeconds int64
	PublishedText   string
	ThumbnailURL    string
	IsShort         bool
}

// VideoPage is one page of a channel's video tab
type VideoPage struct {
	Items         []RawVideoItem
	NextPageToken *string
}

// AudioStreamDetails is a resolved, playable audio stream
type AudioStreamDetails struct {
	URL         string
	BitrateKbps int
	MimeType    string
}

// Client is the extraction adapter over the public video site: channel
// browse and search via the internal API, stream resolution via the
// player library. The adapter does no caching; call sites bound
// concurrency and cache results.
type Client struct {
	yt   *youtube.Client
	tube *innertubeClient
	log  zerolog.Logger
}

// New creates an extraction client. ratePerSecond throttles the
// internal-API calls; zero or negative selects the default.
func New(httpc *http.Client, ratePerSecond float64) *Client {
	yt := &youtube.Client{}
	if httpc != nil {
		yt.HTTPClient = httpc
	}
	return &Client{
		yt:   yt,
		tube: newInnertubeClient(httpc, ratePerSecond),
		log:  logger.With("extractor"),
	}
}

// ResolveChannel retrieves a channel's identity and display details
func (c *Client) ResolveChannel(ctx context.Context, channelID string) (*ChannelInfo, error) {
	body, err := c.tube.browse(ctx, channelID, "", "")
	if err != nil {
		return nil, fmt.Errorf("channel browse failed: %w", err)
	}

	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("failed to decode channel browse: %w", err)
	}

	info, ok := channelFromBrowse(root)
	if !ok {
		return nil, fmt.Errorf("channel %s: no metadata in browse response", channelID)
	}
	return &info, nil
}

// ListChannelVideos retrieves one page of a channel's videos tab. An
// empty pageToken loads the first page; a channel without a videos tab
// yields an empty page rather than an error.
func (c *Client) ListChannelVideos(ctx context.Context, channelID, pageToken string) (*VideoPage, error) {
	var body []byte
	var err error
	if pageToken != "" {
		body, err = c.tube.browse(ctx, "", "", pageToken)
	} else {
		body, err = c.tube.browse(ctx, channelID, videosTabParams, "")
	}
	if err != nil {
		return nil, fmt.Errorf("video listing failed: %w", err)
	}

	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("failed to decode video listing: %w", err)
	}

	if pageToken == "" && !hasVideosTab(root) {
		c.log.Debug().Str("channel_id", channelID).Msg("channel has no videos tab")
		return &VideoPage{}, nil
	}

	items, next := parseVideoList(root)
	return &VideoPage{Items: items, NextPageToken: next}, nil
}

// SearchChannels runs a channel-scoped site search
func (c *Client) SearchChannels(ctx context.Context, query string) ([]ChannelSearchResult, error) {
	body, err := c.tube.search(ctx, query, channelSearchParams)
	if err != nil {
		return nil, fmt.Errorf("channel search failed: %w", err)
	}

	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("failed to decode channel search: %w", err)
	}
	return channelsFromSearch(root), nil
}

// ResolveBestAudioStream resolves a video's playable audio stream URL
// according to the quality preference
func (c *Client) ResolveBestAudioStream(ctx context.Context, videoID string, pref Quality) (*AudioStreamDetails, error) {
	video, err := c.yt.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("video resolution failed: %w", err)
	}

	formats := video.Formats.Type("audio")
	streams := make([]AudioStream, 0, len(formats))
	for i := range formats {
		streams = append(streams, audioStreamFromFormat(i, &formats[i]))
	}

	sel, err := selectAudioStream(streams, pref)
	if err != nil {
		return nil, err
	}

	format := &formats[sel.idx]
	streamURL := format.URL
	if streamURL == "" {
		streamURL, err = c.yt.GetStreamURLContext(ctx, video, format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoStreamURL, err)
		}
	}
	if streamURL == "" {
		return nil, ErrNoStreamURL
	}

	return &AudioStreamDetails{
		URL:         streamURL,
		BitrateKbps: sel.BitrateKbps,
		MimeType:    sel.MimeType,
	}, nil
}

func audioStreamFromFormat(idx int, f *youtube.Format) AudioStream {
	bitrate := f.Bitrate
	if bitrate == 0 {
		bitrate = f.AverageBitrate
	}
	s := AudioStream{
		URL:         f.URL,
		BitrateKbps: bitrate / 1000,
		MimeType:    f.MimeType,
		idx:         idx,
	}
	if f.AudioTrack != nil {
		name := strings.ToLower(f.AudioTrack.DisplayName)
		s.IsOriginal = f.AudioTrack.AudioIsDefault || strings.Contains(name, "original")
		if dot := strings.Index(f.AudioTrack.ID, "."); dot > 0 {
			s.Locale = f.AudioTrack.ID[:dot]
		} else {
			s.Locale = f.AudioTrack.ID
		}
	}
	return s
}
