package holodex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// APIError is a non-2xx response from the first-party API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is or wraps an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the first-party content API: video search, channel
// details and listings, organizations, and video detail with songs.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient creates a content API client. A nil httpc gets a default
// with a 15s timeout.
func NewClient(baseURL, apiKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpc: httpc}
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-APIKEY", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SearchVideos runs the advanced video search
func (c *Client) SearchVideos(ctx context.Context, req VideoSearchRequest) (*VideoSearchResponse, error) {
	var out VideoSearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/search/videoSearch", nil, req, &out); err != nil {
		return nil, fmt.Errorf("video search failed: %w", err)
	}
	return &out, nil
}

// GetChannel retrieves a channel's full details
func (c *Client) GetChannel(ctx context.Context, channelID string) (*ChannelDetails, error) {
	var out ChannelDetails
	if err := c.doJSON(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get channel failed: %w", err)
	}
	return &out, nil
}

// ChannelVideos lists a channel's videos with pagination
func (c *Client) ChannelVideos(ctx context.Context, channelID string, offset, limit int) ([]VideoItem, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("include", "songs")

	var out []VideoItem
	if err := c.doJSON(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID)+"/videos", q, nil, &out); err != nil {
		return nil, fmt.Errorf("channel videos failed: %w", err)
	}
	return out, nil
}

// ListOrgs retrieves the organization listing
func (c *Client) ListOrgs(ctx context.Context) ([]Org, error) {
	var out []Org
	if err := c.doJSON(ctx, http.MethodGet, "/orgs", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list orgs failed: %w", err)
	}
	return out, nil
}

// GetVideoWithSongs retrieves a video's details including its tagged
// song segments
func (c *Client) GetVideoWithSongs(ctx context.Context, videoID string) (*VideoWithSongs, error) {
	q := url.Values{}
	q.Set("include", "songs")

	var out VideoWithSongs
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+url.PathEscape(videoID), q, nil, &out); err != nil {
		return nil, fmt.Errorf("get video with songs failed: %w", err)
	}
	return &out, nil
}
