package playlist

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utadex/internal/db"
	"utadex/internal/holodex"
	"utadex/internal/models"
)

type fakeResolver struct {
	ids map[string]int
}

func (f *fakeResolver) FindSongByStart(ctx context.Context, videoID string, startSeconds int) (*int, error) {
	id, ok := f.ids[fmt.Sprintf("%s:%d", videoID, startSeconds)]
	if !ok {
		return nil, fmt.Errorf("no song at %s+%ds", videoID, startSeconds)
	}
	return &id, nil
}

type testEnv struct {
	svc   *Service
	repos *db.Repositories
	db    *db.DB
}

func setupService(t *testing.T, handler http.Handler, resolver SongResolver) (*testEnv, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	repos := db.NewRepositories(database)

	srv := httptest.NewServer(handler)
	music := holodex.NewMusicClient(srv.URL, "jwt", srv.Client())

	if resolver == nil {
		resolver = &fakeResolver{}
	}
	env := &testEnv{
		svc:   NewService(repos, music, resolver),
		repos: repos,
		db:    database,
	}
	cleanup := func() {
		srv.Close()
		_ = database.Close()
	}
	return env, cleanup
}

// setLastModified rewrites the stored header timestamp so pull-merge
// gating can be exercised deterministically
func (e *testEnv) setLastModified(t *testing.T, id int64, ts string) {
	t.Helper()
	res := e.db.Model(&models.Playlist{}).
		Where("playlist_id = ?", id).
		Update("updated_at", ts)
	require.NoError(t, res.Error)
}

func segmentMeta(videoID string, start, end int64) *models.UnifiedMetadata {
	return &models.UnifiedMetadata{
		ID:            models.SegmentID(videoID, int(start)),
		Title:         fmt.Sprintf("song at %d", start),
		ArtistName:    "Artist",
		Type:          models.TypeSegment,
		Duration:      end - start,
		StartSeconds:  &start,
		EndSeconds:    &end,
		ParentVideoID: &videoID,
		ChannelID:     "ch1",
	}
}

func songPtr(n int) *int { return &n }

func TestCreateAndAddItem(t *testing.T) {
	env, cleanup := setupService(t, http.NotFoundHandler(), nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "My Mix", nil)
	require.NoError(t, err)

	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 120, 360), false))
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 400, 640), true))

	items, err := env.svc.Items(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].ItemOrder)
	assert.Equal(t, 1, items[1].ItemOrder)
	assert.False(t, items[0].IsLocalOnly)
	assert.True(t, items[1].IsLocalOnly)
	assert.Equal(t, "vid1", items[0].VideoID)

	p, err := env.repos.Playlists.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SyncDirty, p.SyncStatus)
}

func TestSyncDeletions_LocalOnlyPlaylistPurgedWithoutNetwork(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "Doomed", nil)
	require.NoError(t, err)
	require.NoError(t, env.svc.Delete(ctx, id))

	env.svc.SyncDeletions(ctx)

	_, err = env.repos.Playlists.GetByID(ctx, id)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestSyncDeletions_RemoteGoneCountsAsSuccess(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		http.NotFound(w, r)
	})
	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "Doomed", nil)
	require.NoError(t, err)
	serverID := "42"
	require.NoError(t, env.repos.Playlists.SetSyncState(ctx, id, models.SyncSynced, &serverID))
	require.NoError(t, env.svc.Delete(ctx, id))

	env.svc.SyncDeletions(ctx)

	_, err = env.repos.Playlists.GetByID(ctx, id)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestSyncUpserts_PushesResolvedSongIDs(t *testing.T) {
	var gotReq holodex.PlaylistWriteRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"id": 77}`))
	})

	resolver := &fakeResolver{ids: map[string]int{
		"vid1:120": 101,
		"vid1:400": 102,
	}}
	env, cleanup := setupService(t, handler, resolver)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "My Mix", nil)
	require.NoError(t, err)
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 120, 360), false))
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 400, 640), false))
	// Local-only items are excluded from the push
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid2", 10, 200), true))

	env.svc.SyncUpserts(ctx)

	assert.Equal(t, "My Mix", gotReq.Title)
	assert.Equal(t, []int{101, 102}, gotReq.Content)

	p, err := env.repos.Playlists.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, p.SyncStatus)
	require.NotNil(t, p.ServerID)
	assert.Equal(t, "77", *p.ServerID)
}

func TestSyncUpserts_FailureStaysDirty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "My Mix", nil)
	require.NoError(t, err)

	env.svc.SyncUpserts(ctx)

	p, err := env.repos.Playlists.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SyncDirty, p.SyncStatus)
	assert.Nil(t, p.ServerID)
}

func TestSyncUpserts_UnresolvableItemSkipped(t *testing.T) {
	var gotReq holodex.PlaylistWriteRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"id": 77}`))
	})

	resolver := &fakeResolver{ids: map[string]int{"vid1:120": 101}}
	env, cleanup := setupService(t, handler, resolver)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "My Mix", nil)
	require.NoError(t, err)
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 120, 360), false))
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid9", 500, 700), false))

	env.svc.SyncUpserts(ctx)

	assert.Equal(t, []int{101}, gotReq.Content)
}

func remotePlaylist(id int64, updatedAt string, songs ...holodex.Song) holodex.Playlist {
	return holodex.Playlist{
		ID:        &id,
		Title:     "Remote Mix",
		Type:      "ugp",
		UpdatedAt: &updatedAt,
		Content:   songs,
	}
}

func TestSyncPull_MergePreservesLocalOnlyItems(t *testing.T) {
	remote := remotePlaylist(42, "2026-08-31T00:00:00Z",
		holodex.Song{ID: songPtr(101), Name: "Remote One", VideoID: "vid1", Start: 120, End: 360},
		holodex.Song{ID: songPtr(102), Name: "Remote Two", VideoID: "vid1", Start: 400, End: 640},
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/musicdex/playlist" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]holodex.PlaylistStub{{ID: 42, Title: "Remote Mix"}})
		case strings.HasSuffix(r.URL.Path, "/playlist/42"):
			_ = json.NewEncoder(w).Encode(remote)
		default:
			http.NotFound(w, r)
		}
	})

	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "Remote Mix", nil)
	require.NoError(t, err)
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid_local", 5, 100), true))

	serverID := "42"
	require.NoError(t, env.repos.Playlists.SetSyncState(ctx, id, models.SyncSynced, &serverID))
	env.setLastModified(t, id, "2026-01-01T00:00:00Z")

	env.svc.SyncPull(ctx)

	items, err := env.svc.Items(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Remote One", *items[0].Name)
	assert.Equal(t, "Remote Two", *items[1].Name)
	// Local-only item survives, appended after remote content
	assert.True(t, items[2].IsLocalOnly)
	assert.Equal(t, "vid_local", items[2].VideoID)
	assert.Equal(t, []int{0, 1, 2}, []int{items[0].ItemOrder, items[1].ItemOrder, items[2].ItemOrder})
}

func TestSyncPull_ServerNotNewerLeavesItemsAlone(t *testing.T) {
	remote := remotePlaylist(42, "2026-01-01T00:00:00Z",
		holodex.Song{ID: songPtr(101), Name: "Remote One", VideoID: "vid1", Start: 120, End: 360},
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/musicdex/playlist" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]holodex.PlaylistStub{{ID: 42, Title: "Remote Mix"}})
		case strings.HasSuffix(r.URL.Path, "/playlist/42"):
			_ = json.NewEncoder(w).Encode(remote)
		default:
			http.NotFound(w, r)
		}
	})

	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "Remote Mix", nil)
	require.NoError(t, err)
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid_local", 5, 100), false))

	serverID := "42"
	require.NoError(t, env.repos.Playlists.SetSyncState(ctx, id, models.SyncSynced, &serverID))
	env.setLastModified(t, id, "2026-08-31T00:00:00Z")

	env.svc.SyncPull(ctx)

	items, err := env.svc.Items(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "vid_local", items[0].VideoID)
}

func TestSyncPull_AdoptsNewRemotePlaylist(t *testing.T) {
	remote := remotePlaylist(88, "2026-08-31T00:00:00Z",
		holodex.Song{ID: songPtr(201), Name: "Fresh", VideoID: "vid3", Start: 0, End: 180},
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/musicdex/playlist" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]holodex.PlaylistStub{{ID: 88, Title: "Remote Mix"}})
		case strings.HasSuffix(r.URL.Path, "/playlist/88"):
			_ = json.NewEncoder(w).Encode(remote)
		default:
			http.NotFound(w, r)
		}
	})

	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	env.svc.SyncPull(ctx)

	p, err := env.repos.Playlists.GetByServerID(ctx, "88")
	require.NoError(t, err)
	assert.Equal(t, "Remote Mix", p.Name)
	assert.Equal(t, models.SyncSynced, p.SyncStatus)

	items, err := env.svc.Items(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Fresh", *items[0].Name)
}

func TestSyncPull_PurgesRemotelyDeletedSyncedPlaylist(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/musicdex/playlist" && r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]holodex.PlaylistStub{})
			return
		}
		http.NotFound(w, r)
	})

	env, cleanup := setupService(t, handler, nil)
	defer cleanup()

	ctx := context.Background()
	syncedID, err := env.svc.Create(ctx, "Gone", nil)
	require.NoError(t, err)
	serverID := "7"
	require.NoError(t, env.repos.Playlists.SetSyncState(ctx, syncedID, models.SyncSynced, &serverID))

	dirtyID, err := env.svc.Create(ctx, "Edited Offline", nil)
	require.NoError(t, err)
	dirtyServerID := "8"
	require.NoError(t, env.repos.Playlists.SetSyncState(ctx, dirtyID, models.SyncDirty, &dirtyServerID))

	env.svc.SyncPull(ctx)

	_, err = env.repos.Playlists.GetByID(ctx, syncedID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// Locally edited playlists are never discarded by the pull
	_, err = env.repos.Playlists.GetByID(ctx, dirtyID)
	assert.NoError(t, err)
}

func TestAddItem_LocalOnlyLeavesPlaylistSynced(t *testing.T) {
	env, cleanup := setupService(t, http.NotFoundHandler(), nil)
	defer cleanup()

	ctx := context.Background()
	id, err := env.svc.Create(ctx, "Synced Mix", nil)
	require.NoError(t, err)
	serverID := "55"
	require.NoError(t, env.repos.Playlists.SetSyncState(ctx, id, models.SyncSynced, &serverID))

	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 120, 360), true))

	p, err := env.repos.Playlists.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, p.SyncStatus)

	// A syncable add still flips it
	require.NoError(t, env.svc.AddItem(ctx, id, segmentMeta("vid1", 400, 640), false))
	p, err = env.repos.Playlists.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SyncDirty, p.SyncStatus)
}
