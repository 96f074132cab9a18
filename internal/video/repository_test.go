package video

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utadex/internal/db"
	"utadex/internal/holodex"
	"utadex/internal/models"
)

func setupVideo(t *testing.T, handler http.Handler) (*Repository, *db.Repositories, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	repos := db.NewRepositories(database)
	srv := httptest.NewServer(handler)
	api := holodex.NewClient(srv.URL, "key", srv.Client())

	repo := NewRepository(api, repos)
	cleanup := func() {
		srv.Close()
		_ = database.Close()
	}
	return repo, repos, cleanup
}

func songID(n int) *int { return &n }

func videoResponse() holodex.VideoWithSongs {
	availableAt := "2026-08-20T12:00:00Z"
	return holodex.VideoWithSongs{
		VideoItem: holodex.VideoItem{
			ID:          "vid1",
			Title:       "unarchived karaoke",
			Status:      "past",
			Duration:    5400,
			SongCount:   2,
			AvailableAt: &availableAt,
			Channel:     holodex.ChannelRef{ID: "ch1", Name: "Singer Ch"},
		},
		Songs: []holodex.Song{
			{ID: songID(101), Name: "First Song", Start: 120, End: 360},
			{ID: songID(102), Name: "Second Song", OriginalArtist: "Some Artist", Start: 400, End: 640},
		},
	}
}

func TestGetVideoWithSongs_PersistsSegments(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/videos/vid1", r.URL.Path)
		require.Equal(t, "songs", r.URL.Query().Get("include"))
		_ = json.NewEncoder(w).Encode(videoResponse())
	})

	repo, repos, cleanup := setupVideo(t, handler)
	defer cleanup()

	ctx := context.Background()
	detail, err := repo.GetVideoWithSongs(ctx, "vid1")
	require.NoError(t, err)

	assert.Equal(t, "vid1", detail.Video.StableID)
	require.Len(t, detail.Segments, 2)
	// Segments come back ordered by start offset
	assert.Equal(t, "First Song", detail.Segments[0].Title)
	assert.Equal(t, "Second Song", detail.Segments[1].Title)
	assert.True(t, detail.Segments[0].IsSegment)
	// Artist falls back to the channel name when untagged
	assert.Equal(t, "Singer Ch", detail.Segments[0].ArtistText)
	assert.Equal(t, "Some Artist", detail.Segments[1].ArtistText)

	// Segment rows are store-backed with derived stable ids
	seg, err := repos.Metadata.SegmentByVideoAndStart(ctx, "vid1", 120)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentID("vid1", 120), seg.ID)
	require.NotNil(t, seg.ParentVideoID)
	assert.Equal(t, "vid1", *seg.ParentVideoID)
	assert.Equal(t, int64(240), seg.Duration)
}

func TestGetVideoWithSongs_DecoratesLikedSegment(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(videoResponse())
	})

	repo, repos, cleanup := setupVideo(t, handler)
	defer cleanup()

	ctx := context.Background()
	_, err := repo.GetVideoWithSongs(ctx, "vid1")
	require.NoError(t, err)

	require.NoError(t, repos.Interactions.MarkDirty(ctx, models.SegmentID("vid1", 120), models.InteractionLike))

	detail, err := repo.GetVideoWithSongs(ctx, "vid1")
	require.NoError(t, err)
	assert.True(t, detail.Segments[0].IsLiked)
	assert.False(t, detail.Segments[1].IsLiked)
}

func TestFindSongByStart(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(videoResponse())
	})

	repo, _, cleanup := setupVideo(t, handler)
	defer cleanup()

	ctx := context.Background()

	id, err := repo.FindSongByStart(ctx, "vid1", 400)
	require.NoError(t, err)
	assert.Equal(t, 102, *id)

	_, err = repo.FindSongByStart(ctx, "vid1", 999)
	assert.Error(t, err)
}

func TestRefresh_SerializedPerVideo(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		if m := maxInFlight.Load(); n > m {
			maxInFlight.Store(n)
		}
		defer inFlight.Add(-1)
		_ = json.NewEncoder(w).Encode(videoResponse())
	})

	repo, _, cleanup := setupVideo(t, handler)
	defer cleanup()

	ctx := context.Background()
	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := repo.GetVideoWithSongs(ctx, "vid1")
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, int32(1), maxInFlight.Load())
}
