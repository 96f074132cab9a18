package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utadex/internal/db"
)

type testKey struct {
	key      string
	category string
}

func (k testKey) StringKey() string { return k.key }
func (k testKey) Category() string  { return k.category }

type testItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// setupEngine creates an engine backed by a real sqlite page table
func setupEngine(t *testing.T, ttl, staleTTL time.Duration) (*Engine[testItem], func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	err = db.RunMigrations(sqlDB, "file://../../migrations")
	require.NoError(t, err)

	repos := db.NewRepositories(database)
	engine := NewEngine[testItem]("browse", repos.Pages, ttl, staleTTL)

	cleanup := func() {
		_ = database.Close()
	}
	return engine, cleanup
}

func page(ids ...string) *FetcherResult[testItem] {
	items := make([]testItem, len(ids))
	for i, id := range ids {
		items[i] = testItem{ID: id, Title: "title " + id}
	}
	return &FetcherResult[testItem]{Items: items}
}

func countingFetcher(result *FetcherResult[testItem], err error, calls *int) Fetcher[testItem] {
	return func(ctx context.Context) (*FetcherResult[testItem], error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func TestCacheOnly_MissReturnsNotFound(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	key := testKey{key: "browse:hololive:0", category: "browse"}
	_, err := engine.Fetch(context.Background(), key, CacheOnly, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheFirst_FreshEntrySkipsFetcher(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("a", "b")))

	calls := 0
	result, err := engine.Fetch(ctx, key, CacheFirst, countingFetcher(nil, errors.New("must not be called"), &calls))

	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, OriginCache, result.Origin)
	assert.Len(t, result.Page.Items, 2)
	assert.Equal(t, "a", result.Page.Items[0].ID)
}

func TestCacheFirst_MissFetchesAndStores(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}

	calls := 0
	result, err := engine.Fetch(ctx, key, CacheFirst, countingFetcher(page("a"), nil, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OriginNetwork, result.Origin)

	// Second read is served from cache
	result, err = engine.Fetch(ctx, key, CacheFirst, countingFetcher(page("b"), nil, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OriginCache, result.Origin)
	assert.Equal(t, "a", result.Page.Items[0].ID)
}

func TestCacheFirst_ExpiredEntryRefetches(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("old")))

	// Advance past the freshness window
	engine.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	calls := 0
	result, err := engine.Fetch(ctx, key, CacheFirst, countingFetcher(page("new"), nil, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OriginNetwork, result.Origin)
	assert.Equal(t, "new", result.Page.Items[0].ID)
}

func TestCacheFirst_NetworkFailureFallsBackToStale(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("stale")))

	// Expired for freshness but inside the stale window
	engine.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	calls := 0
	fetchErr := &NetworkError{Err: errors.New("connection refused")}
	result, err := engine.Fetch(ctx, key, CacheFirst, countingFetcher(nil, fetchErr, &calls))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OriginStaleCache, result.Origin)
	assert.Equal(t, "stale", result.Page.Items[0].ID)
}

func TestCacheFirst_StaleWindowExceededPropagatesError(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("ancient")))

	// Beyond even the stale window
	engine.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	calls := 0
	fetchErr := &NetworkError{Err: errors.New("connection refused")}
	_, err := engine.Fetch(ctx, key, CacheFirst, countingFetcher(nil, fetchErr, &calls))

	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestNetworkFirst_SuccessIgnoresFreshCache(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "search:okayu:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("cached")))

	calls := 0
	result, err := engine.Fetch(ctx, key, NetworkFirst, countingFetcher(page("fresh"), nil, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, OriginNetwork, result.Origin)
	assert.Equal(t, "fresh", result.Page.Items[0].ID)
}

func TestNetworkFirst_FailureFallsBackToFreshCache(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "search:okayu:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("cached")))

	calls := 0
	fetchErr := &NetworkError{Err: errors.New("timeout")}
	result, err := engine.Fetch(ctx, key, NetworkFirst, countingFetcher(nil, fetchErr, &calls))

	require.NoError(t, err)
	assert.Equal(t, OriginStaleCache, result.Origin)
	assert.Equal(t, "cached", result.Page.Items[0].ID)
}

func TestNetworkOnly_NeverReadsCache(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("cached")))

	calls := 0
	fetchErr := &NetworkError{Err: errors.New("down")}
	_, err := engine.Fetch(ctx, key, NetworkOnly, countingFetcher(nil, fetchErr, &calls))

	// No stale fallback for NetworkOnly even though a cached page exists
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestNonNetworkFetcherErrorIsWrapped(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	calls := 0
	key := testKey{key: "browse:hololive:0", category: "browse"}
	_, err := engine.Fetch(context.Background(), key, NetworkOnly, countingFetcher(nil, errors.New("plain failure"), &calls))

	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestStore_PersistsPaginationHints(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:25", category: "browse"}

	total := 120
	next := 50
	cursor := "CAE"
	p := page("a")
	p.TotalAvailable = &total
	p.NextOffset = &next
	p.NextCursor = &cursor
	require.NoError(t, engine.Store(ctx, key, p))

	// Purge memory so the read exercises the disk tier
	engine.Invalidate()

	got, err := engine.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got.TotalAvailable)
	assert.Equal(t, 120, *got.TotalAvailable)
	require.NotNil(t, got.NextOffset)
	assert.Equal(t, 50, *got.NextOffset)
	require.NotNil(t, got.NextCursor)
	assert.Equal(t, "CAE", *got.NextCursor)
}

func TestClear_DropsBothTiers(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	key := testKey{key: "browse:hololive:0", category: "browse"}
	require.NoError(t, engine.Store(ctx, key, page("a")))
	require.NoError(t, engine.Clear(ctx))

	_, err := engine.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanupExpired_SweepsOnlyAgedPages(t *testing.T) {
	engine, cleanup := setupEngine(t, time.Hour, 24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	old := testKey{key: "browse:hololive:0", category: "browse"}
	fresh := testKey{key: "browse:hololive:50", category: "browse"}
	require.NoError(t, engine.Store(ctx, old, page("a")))

	engine.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	require.NoError(t, engine.Store(ctx, fresh, page("b")))

	evicted, err := engine.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted)

	_, err = engine.GetStale(ctx, old)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := engine.GetStale(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Items[0].ID)
}
