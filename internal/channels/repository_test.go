package channels

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utadex/internal/cache"
	"utadex/internal/db"
	"utadex/internal/extractor"
	"utadex/internal/holodex"
	"utadex/internal/models"
)

// rewriteTransport redirects every request to the test server so the
// extraction adapter never leaves the process
type rewriteTransport struct {
	target *url.URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func setupChannels(t *testing.T, apiHandler, tubeHandler http.Handler) (*Repository, *db.Repositories, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	repos := db.NewRepositories(database)

	apiSrv := httptest.NewServer(apiHandler)
	api := holodex.NewClient(apiSrv.URL, "key", apiSrv.Client())

	var tubeClient *http.Client
	var tubeSrv *httptest.Server
	if tubeHandler != nil {
		tubeSrv = httptest.NewServer(tubeHandler)
		target, pErr := url.Parse(tubeSrv.URL)
		require.NoError(t, pErr)
		tubeClient = &http.Client{Transport: &rewriteTransport{target: target}}
	} else {
		tubeClient = &http.Client{Transport: failingTransport{}}
	}
	ext := extractor.New(tubeClient, 100)

	repo := NewRepository(api, ext, repos)
	cleanup := func() {
		apiSrv.Close()
		if tubeSrv != nil {
			tubeSrv.Close()
		}
		_ = database.Close()
	}
	return repo, repos, cleanup
}

const channelBrowseFixture = `{
  "metadata": {
    "channelMetadataRenderer": {
      "externalId": "UC_ext",
      "title": "Ext Singer",
      "description": "I sing sometimes",
      "avatar": {"thumbnails": [{"url": "https://img.example/avatar.jpg"}]}
    }
  }
}`

const videosBrowseFixture = `{
  "contents": {
    "tabs": [
      {
        "tabRenderer": {
          "endpoint": {"commandMetadata": {"webCommandMetadata": {"url": "/@extsinger/videos"}}},
          "content": {
            "items": [
              {
                "gridVideoRenderer": {
                  "videoId": "xv_karaoke",
                  "title": {"runs": [{"text": "karaoke night"}]},
                  "lengthText": {"simpleText": "1:02:33"},
                  "publishedTimeText": {"simpleText": "2 days ago"},
                  "thumbnail": {"thumbnails": [{"url": "https://img.example/k.jpg"}]}
                }
              },
              {
                "gridVideoRenderer": {
                  "videoId": "xv_short",
                  "title": {"runs": [{"text": "singing clip"}]},
                  "lengthText": {"simpleText": "0:30"},
                  "thumbnail": {"thumbnails": [{"url": "https://img.example/s.jpg"}]}
                }
              },
              {
                "gridVideoRenderer": {
                  "videoId": "xv_gaming",
                  "title": {"runs": [{"text": "hardcore speedrun attempt"}]},
                  "lengthText": {"simpleText": "2:00:00"},
                  "thumbnail": {"thumbnails": [{"url": "https://img.example/g.jpg"}]}
                }
              }
            ]
          }
        }
      }
    ]
  }
}`

func TestGetChannel_FirstParty(t *testing.T) {
	english := "Suisei Hoshimachi"
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels/UC_fp", r.URL.Path)
		_ = json.NewEncoder(w).Encode(holodex.ChannelDetails{
			ID:          "UC_fp",
			Name:        "星街すいせい",
			EnglishName: &english,
			Org:         strPtr("Hololive"),
		})
	})

	repo, repos, cleanup := setupChannels(t, apiHandler, nil)
	defer cleanup()

	item, err := repo.GetChannel(context.Background(), "UC_fp", false)
	require.NoError(t, err)
	assert.Equal(t, "UC_fp", item.StableID)
	assert.Equal(t, "Suisei Hoshimachi", item.Title)
	assert.False(t, item.IsExternal)

	stored, err := repos.Metadata.GetByID(context.Background(), "UC_fp")
	require.NoError(t, err)
	assert.Equal(t, models.TypeChannel, stored.Type)
}

func TestGetChannel_External(t *testing.T) {
	tubeHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(channelBrowseFixture))
	})

	repo, _, cleanup := setupChannels(t, http.NotFoundHandler(), tubeHandler)
	defer cleanup()

	item, err := repo.GetChannel(context.Background(), "UC_ext", true)
	require.NoError(t, err)
	assert.Equal(t, "UC_ext", item.StableID)
	assert.Equal(t, "Ext Singer", item.Title)
	assert.True(t, item.IsExternal)
}

func TestGetChannel_NetworkFailureTyped(t *testing.T) {
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	repo, _, cleanup := setupChannels(t, apiHandler, nil)
	defer cleanup()

	_, err := repo.GetChannel(context.Background(), "UC_fp", false)
	require.Error(t, err)
	assert.True(t, cache.IsNetworkError(err))
}

func TestExternalChannelVideos_FiltersAndPersists(t *testing.T) {
	tubeHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(videosBrowseFixture))
	})

	repo, repos, cleanup := setupChannels(t, http.NotFoundHandler(), tubeHandler)
	defer cleanup()

	items := repo.ExternalChannelVideos(context.Background(), "UC_ext", "Ext Singer")

	// The 30s clip and the gaming video are filtered out
	require.Len(t, items, 1)
	assert.Equal(t, "xv_karaoke", items[0].StableID)
	assert.True(t, items[0].IsExternal)

	stored, err := repos.Metadata.GetByID(context.Background(), "xv_karaoke")
	require.NoError(t, err)
	assert.Equal(t, int64(3753), stored.Duration)
	require.NotNil(t, stored.Org)
	assert.Equal(t, models.OrgExternal, *stored.Org)
}

func TestExternalChannelVideos_FailSoft(t *testing.T) {
	repo, _, cleanup := setupChannels(t, http.NotFoundHandler(), nil)
	defer cleanup()

	items := repo.ExternalChannelVideos(context.Background(), "UC_gone", "Gone Channel")
	assert.Empty(t, items)
}

func TestSearchExternalChannels_FailureIsError(t *testing.T) {
	repo, _, cleanup := setupChannels(t, http.NotFoundHandler(), nil)
	defer cleanup()

	_, err := repo.SearchExternalChannels(context.Background(), "singer")
	require.Error(t, err)
	assert.True(t, cache.IsNetworkError(err))
}

func TestWatchChannel_EmitsOnMetadataChange(t *testing.T) {
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(holodex.ChannelDetails{ID: "UC_w", Name: "Watcher Ch"})
	})

	repo, repos, cleanup := setupChannels(t, apiHandler, nil)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := repo.WatchChannel(ctx, "UC_w", false)

	first := <-stream
	assert.Equal(t, cache.StateLoading, first.State)

	second := <-stream
	require.Equal(t, cache.StateData, second.State)
	assert.Equal(t, "Watcher Ch", second.Data.Title)

	updated := models.UnifiedMetadata{
		ID:        "UC_w",
		Title:     "Watcher Ch Renamed",
		Type:      models.TypeChannel,
		ChannelID: "UC_w",
		Status:    "past",
	}
	require.NoError(t, repos.Metadata.Upsert(ctx, &updated))

	third := <-stream
	require.Equal(t, cache.StateData, third.State)
	assert.Equal(t, "Watcher Ch Renamed", third.Data.Title)
}

func strPtr(s string) *string { return &s }
