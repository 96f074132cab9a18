package holodex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchVideos_SendsBodyAndAPIKey(t *testing.T) {
	var gotBody VideoSearchRequest
	var gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search/videoSearch", r.URL.Path)
		gotKey = r.Header.Get("X-APIKEY")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		resp := VideoSearchResponse{
			Total: 1,
			Items: []VideoItem{{ID: "vid1", Title: "song stream", SongCount: 3}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", srv.Client())
	out, err := client.SearchVideos(context.Background(), VideoSearchRequest{
		Sort:      "available_at",
		Org:       []string{"Hololive"},
		Paginated: true,
		Limit:     25,
	})

	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, []string{"Hololive"}, gotBody.Org)
	assert.Equal(t, 25, gotBody.Limit)
	assert.Equal(t, 1, out.Total)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "vid1", out.Items[0].ID)
}

func TestGetChannel_NotFoundMapsToAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", srv.Client())
	_, err := client.GetChannel(context.Background(), "UC_missing")

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGetVideoWithSongs_DecodesSongList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/videos/vid1", r.URL.Path)
		require.Equal(t, "songs", r.URL.Query().Get("include"))

		id := 42
		resp := VideoWithSongs{
			VideoItem: VideoItem{ID: "vid1", Title: "karaoke night"},
			Songs: []Song{
				{ID: &id, Name: "Connect", Start: 120, End: 350, VideoID: "vid1"},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", srv.Client())
	out, err := client.GetVideoWithSongs(context.Background(), "vid1")

	require.NoError(t, err)
	require.Len(t, out.Songs, 1)
	assert.Equal(t, 42, *out.Songs[0].ID)
	assert.Equal(t, 120, out.Songs[0].Start)
}

func TestMusicClient_DeletePlaylist404IsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, "jwt-token", srv.Client())
	err := client.DeletePlaylist(context.Background(), "123")
	assert.NoError(t, err)
}

func TestMusicClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(LikesPage{Items: []Song{}, Total: 0, Page: 0})
	}))
	defer srv.Close()

	client := NewMusicClient(srv.URL, "jwt-token", srv.Client())
	_, err := client.Likes(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, "Bearer jwt-token", gotAuth)
}
