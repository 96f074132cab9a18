package holodex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// MusicClient talks to the music-service API: hot songs, discovery
// hubs, playlists, likes, and favorite channels. User-scoped endpoints
// authenticate with a bearer token.
type MusicClient struct {
	baseURL string
	jwt     string
	httpc   *http.Client
}

// NewMusicClient creates a music API client. A nil httpc gets a
// default with a 15s timeout.
func NewMusicClient(baseURL, jwt string, httpc *http.Client) *MusicClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &MusicClient{baseURL: baseURL, jwt: jwt, httpc: httpc}
}

func (c *MusicClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
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
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
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

// HotSongs retrieves trending songs, optionally scoped to an org or a
// channel. Pass empty strings for a global list.
func (c *MusicClient) HotSongs(ctx context.Context, org, channelID string) ([]Song, error) {
	q := url.Values{}
	if org != "" {
		q.Set("org", org)
	}
	if channelID != "" {
		q.Set("channel_id", channelID)
	}

	var out []Song
	if err := c.doJSON(ctx, http.MethodGet, "/songs/hot", q, nil, &out); err != nil {
		return nil, fmt.Errorf("hot songs failed: %w", err)
	}
	return out, nil
}

// DiscoveryForOrg retrieves the discovery hub for an organization
func (c *MusicClient) DiscoveryForOrg(ctx context.Context, org string) (*DiscoveryResponse, error) {
	var out DiscoveryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/discovery/org/"+url.PathEscape(org), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("org discovery failed: %w", err)
	}
	return &out, nil
}

// DiscoveryForChannel retrieves the discovery hub for a channel
func (c *MusicClient) DiscoveryForChannel(ctx context.Context, channelID string) (*DiscoveryResponse, error) {
	var out DiscoveryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/discovery/channel/"+url.PathEscape(channelID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("channel discovery failed: %w", err)
	}
	return &out, nil
}

// DiscoveryForFavorites retrieves the discovery hub spanning the
// user's favorite channels
func (c *MusicClient) DiscoveryForFavorites(ctx context.Context) (*DiscoveryResponse, error) {
	var out DiscoveryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/discovery/favorites", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("favorites discovery failed: %w", err)
	}
	return &out, nil
}

// OrgPlaylists retrieves an organization's curated playlist headers
func (c *MusicClient) OrgPlaylists(ctx context.Context, org string) ([]PlaylistStub, error) {
	q := url.Values{}
	q.Set("org", org)

	var out []PlaylistStub
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/playlist", q, nil, &out); err != nil {
		return nil, fmt.Errorf("org playlists failed: %w", err)
	}
	return out, nil
}

// RadioContent resolves a radio to its current playable content
func (c *MusicClient) RadioContent(ctx context.Context, radioID string) (*Playlist, error) {
	var out Playlist
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/radio/"+url.PathEscape(radioID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("radio content failed: %w", err)
	}
	return &out, nil
}

// GetPlaylist retrieves a playlist's header and full content
func (c *MusicClient) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	var out Playlist
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/playlist/"+url.PathEscape(playlistID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get playlist failed: %w", err)
	}
	return &out, nil
}

// ListPlaylists retrieves the user's owned playlist headers
func (c *MusicClient) ListPlaylists(ctx context.Context) ([]PlaylistStub, error) {
	var out []PlaylistStub
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/playlist", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list playlists failed: %w", err)
	}
	return out, nil
}

// WritePlaylist creates or updates an owned playlist and returns the
// server's id for it
func (c *MusicClient) WritePlaylist(ctx context.Context, req PlaylistWriteRequest) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/musicdex/playlist", nil, req, &out); err != nil {
		return 0, fmt.Errorf("write playlist failed: %w", err)
	}
	if out.ID == 0 && req.ID != nil {
		return *req.ID, nil
	}
	return out.ID, nil
}

// DeletePlaylist removes an owned playlist. A 404 counts as success:
// the playlist is already gone.
func (c *MusicClient) DeletePlaylist(ctx context.Context, playlistID string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/musicdex/playlist/"+url.PathEscape(playlistID), nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete playlist failed: %w", err)
	}
	return nil
}

// StarPlaylist stars a playlist for the user
func (c *MusicClient) StarPlaylist(ctx context.Context, playlistID string) error {
	body := map[string]string{"playlist_id": playlistID}
	if err := c.doJSON(ctx, http.MethodPost, "/musicdex/star", nil, body, nil); err != nil {
		return fmt.Errorf("star playlist failed: %w", err)
	}
	return nil
}

// UnstarPlaylist removes a star. A 404 counts as success.
func (c *MusicClient) UnstarPlaylist(ctx context.Context, playlistID string) error {
	q := url.Values{}
	q.Set("playlist_id", playlistID)
	err := c.doJSON(ctx, http.MethodDelete, "/musicdex/star", q, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("unstar playlist failed: %w", err)
	}
	return nil
}

// ListStarred retrieves the ids of the user's starred playlists
func (c *MusicClient) ListStarred(ctx context.Context) ([]PlaylistStub, error) {
	var out []PlaylistStub
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/star", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list starred failed: %w", err)
	}
	return out, nil
}

// Likes retrieves one page of the user's liked songs
func (c *MusicClient) Likes(ctx context.Context, page int) (*LikesPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	var out LikesPage
	if err := c.doJSON(ctx, http.MethodGet, "/musicdex/like", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list likes failed: %w", err)
	}
	return &out, nil
}

// LikeSong likes a song by its server id
func (c *MusicClient) LikeSong(ctx context.Context, songID int) error {
	body := map[string]int{"song_id": songID}
	if err := c.doJSON(ctx, http.MethodPost, "/musicdex/like", nil, body, nil); err != nil {
		return fmt.Errorf("like song failed: %w", err)
	}
	return nil
}

// UnlikeSong removes a like. A 404 counts as success.
func (c *MusicClient) UnlikeSong(ctx context.Context, songID int) error {
	q := url.Values{}
	q.Set("song_id", strconv.Itoa(songID))
	err := c.doJSON(ctx, http.MethodDelete, "/musicdex/like", q, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("unlike song failed: %w", err)
	}
	return nil
}

// FavoriteChannels retrieves the user's favorite channel list
func (c *MusicClient) FavoriteChannels(ctx context.Context) ([]FavoriteChannel, error) {
	var out []FavoriteChannel
	if err := c.doJSON(ctx, http.MethodGet, "/users/favorites", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("favorite channels failed: %w", err)
	}
	return out, nil
}

// PatchFavorites applies add/remove operations to the favorite channel
// list and returns the resulting list
func (c *MusicClient) PatchFavorites(ctx context.Context, ops []PatchOperation) ([]FavoriteChannel, error) {
	var out []FavoriteChannel
	if err := c.doJSON(ctx, http.MethodPatch, "/users/favorites", nil, ops, &out); err != nil {
		return nil, fmt.Errorf("patch favorites failed: %w", err)
	}
	return out, nil
}
