package feed

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"utadex/internal/cache"
	"utadex/internal/db"
	"utadex/internal/extractor"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// Fan-out bounds for the favorites aggregate. The external bound is
// deliberately lower: the extraction adapter is heavier and unstable
// under parallel load.
const (
	firstPartyFanout = 10
	externalFanout   = 4
)

const defaultSort = "available_at"

// Config carries the cache windows for the two feed categories
type Config struct {
	BrowseTTL      time.Duration
	BrowseStaleTTL time.Duration
	SearchTTL      time.Duration
	SearchStaleTTL time.Duration
}

// Page is one resolved feed page
type Page struct {
	Items  []models.DisplayItem
	Total  *int
	Origin cache.Origin
}

// Repository produces paginated music feeds from four sources selected
// by key shape: standard browse, free-text search, single channel, and
// the aggregated favorites feed.
type Repository struct {
	api   *holodex.Client
	music *holodex.MusicClient
	ext   *extractor.Client
	repos *db.Repositories

	browse *cache.Engine[models.UnifiedMetadata]
	search *cache.Engine[models.UnifiedMetadata]

	log zerolog.Logger
}

// NewRepository creates the feed repository with one cache engine per
// category
func NewRepository(api *holodex.Client, music *holodex.MusicClient, ext *extractor.Client, repos *db.Repositories, cfg Config) *Repository {
	return &Repository{
		api:    api,
		music:  music,
		ext:    ext,
		repos:  repos,
		browse: cache.NewEngine[models.UnifiedMetadata]("browse", repos.Pages, cfg.BrowseTTL, cfg.BrowseStaleTTL),
		search: cache.NewEngine[models.UnifiedMetadata]("search", repos.Pages, cfg.SearchTTL, cfg.SearchStaleTTL),
		log:    logger.With("feed"),
	}
}

func (r *Repository) engineFor(key FeedKey) *cache.Engine[models.UnifiedMetadata] {
	if key.Category() == "search" {
		return r.search
	}
	return r.browse
}

// GetFeed resolves one feed page under the given cache policy and
// decorates it with current like/download state from the store
func (r *Repository) GetFeed(ctx context.Context, key FeedKey, policy cache.Policy) (*Page, error) {
	result, err := r.engineFor(key).Fetch(ctx, key, policy, r.fetcherFor(key))
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:  r.decorate(ctx, result.Page.Items),
		Total:  result.Page.TotalAvailable,
		Origin: result.Origin,
	}, nil
}

// WatchFeed resolves a feed page and keeps its like/download overlay
// current: every relevant store change re-reads interaction state and
// emits an updated snapshot, copying only items that actually changed.
func (r *Repository) WatchFeed(ctx context.Context, key FeedKey, policy cache.Policy) <-chan cache.Snapshot[[]models.DisplayItem] {
	out := make(chan cache.Snapshot[[]models.DisplayItem], 1)

	go func() {
		defer close(out)

		send := func(s cache.Snapshot[[]models.DisplayItem]) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(cache.Loading[[]models.DisplayItem]()) {
			return
		}

		result, err := r.engineFor(key).Fetch(ctx, key, policy, r.fetcherFor(key))
		if err != nil {
			send(cache.Failed[[]models.DisplayItem](err))
			return
		}
		base := result.Page.Items

		current := r.decorate(ctx, base)
		if !send(cache.Ready(current, result.Origin)) {
			return
		}

		likeCh, cancelLikes := r.repos.Notifier.Subscribe(db.TopicLikes)
		defer cancelLikes()
		dlCh, cancelDownloads := r.repos.Notifier.Subscribe(db.TopicDownloads)
		defer cancelDownloads()

		for {
			select {
			case <-ctx.Done():
				return
			case <-likeCh:
			case <-dlCh:
			}

			refreshed, changed := mergeDisplayItems(current, r.decorate(ctx, base))
			if !changed {
				continue
			}
			current = refreshed
			if !send(cache.Ready(current, result.Origin)) {
				return
			}
		}
	}()

	return out
}

// CleanupExpired sweeps pages past the stale window out of both
// category caches and reports how many were removed
func (r *Repository) CleanupExpired(ctx context.Context) (int64, error) {
	browsed, err := r.browse.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	searched, err := r.search.CleanupExpired(ctx)
	if err != nil {
		return browsed, err
	}
	return browsed + searched, nil
}

// HotSongs retrieves trending song segments scoped to an org or a
// channel and persists them as segment metadata
func (r *Repository) HotSongs(ctx context.Context, org, channelID string) ([]models.DisplayItem, error) {
	songs, err := r.music.HotSongs(ctx, org, channelID)
	if err != nil {
		return nil, &cache.NetworkError{Err: err}
	}

	metas := make([]models.UnifiedMetadata, 0, len(songs))
	for i := range songs {
		metas = append(metas, MetadataFromSong(&songs[i], "", nil))
	}
	if err := r.repos.Metadata.UpsertBatch(ctx, metas); err != nil {
		return nil, &cache.StorageError{Err: err}
	}
	return r.decorate(ctx, metas), nil
}

func (r *Repository) fetcherFor(key FeedKey) cache.Fetcher[models.UnifiedMetadata] {
	switch {
	case key.Favorites:
		return func(ctx context.Context) (*cache.FetcherResult[models.UnifiedMetadata], error) {
			return r.fetchFavorites(ctx, key)
		}
	case key.Query != "":
		return func(ctx context.Context) (*cache.FetcherResult[models.UnifiedMetadata], error) {
			return r.fetchSearch(ctx, key)
		}
	default:
		return func(ctx context.Context) (*cache.FetcherResult[models.UnifiedMetadata], error) {
			return r.fetchStandard(ctx, key)
		}
	}
}

// fetchStandard serves org/topic browse and single-channel listings
func (r *Repository) fetchStandard(ctx context.Context, key FeedKey) (*cache.FetcherResult[models.UnifiedMetadata], error) {
	req := holodex.VideoSearchRequest{
		Sort:      key.Sort,
		Target:    []string{"stream", "clip"},
		Paginated: true,
		Offset:    key.Offset,
		Limit:     PageSize,
	}
	if req.Sort == "" {
		req.Sort = defaultSort
	}
	if key.Org != "" {
		req.Org = []string{key.Org}
	}
	if key.ChannelID != "" {
		req.Vch = []string{key.ChannelID}
	}
	if key.Topic != "" {
		req.Topic = []string{key.Topic}
	} else {
		req.Topic = DefaultMusicTopics
	}

	resp, err := r.api.SearchVideos(ctx, req)
	if err != nil {
		return nil, &cache.NetworkError{Err: err}
	}

	metas := make([]models.UnifiedMetadata, 0, len(resp.Items))
	for i := range resp.Items {
		v := &resp.Items[i]
		if !IsMusicContent(v) {
			continue
		}
		if key.Status != "" && !statusMatches(key.Status, v.Status) {
			continue
		}
		metas = append(metas, MetadataFromVideo(v))
	}

	if err := r.repos.Metadata.UpsertBatch(ctx, metas); err != nil {
		return nil, &cache.StorageError{Err: err}
	}

	total := resp.Total
	return &cache.FetcherResult[models.UnifiedMetadata]{Items: metas, TotalAvailable: &total}, nil
}

// fetchSearch serves free-text search
func (r *Repository) fetchSearch(ctx context.Context, key FeedKey) (*cache.FetcherResult[models.UnifiedMetadata], error) {
	req := holodex.VideoSearchRequest{
		Sort:       defaultSort,
		Target:     []string{"stream", "clip"},
		Conditions: []holodex.SearchCondition{{Text: key.Query}},
		Paginated:  true,
		Offset:     key.Offset,
		Limit:      PageSize,
	}
	if key.Org != "" {
		req.Org = []string{key.Org}
	}

	resp, err := r.api.SearchVideos(ctx, req)
	if err != nil {
		return nil, &cache.NetworkError{Err: err}
	}

	metas := make([]models.UnifiedMetadata, 0, len(resp.Items))
	for i := range resp.Items {
		if !IsMusicContent(&resp.Items[i]) {
			continue
		}
		metas = append(metas, MetadataFromVideo(&resp.Items[i]))
	}

	if err := r.repos.Metadata.UpsertBatch(ctx, metas); err != nil {
		return nil, &cache.StorageError{Err: err}
	}

	total := resp.Total
	return &cache.FetcherResult[models.UnifiedMetadata]{Items: metas, TotalAvailable: &total}, nil
}

// fetchFavorites aggregates across the user's favorite channels. Each
// page request re-fetches and re-sorts the full per-channel union; the
// merge favors correctness over network efficiency.
func (r *Repository) fetchFavorites(ctx context.Context, key FeedKey) (*cache.FetcherResult[models.UnifiedMetadata], error) {
	channels, err := r.repos.Metadata.FavoriteChannels(ctx)
	if err != nil {
		return nil, &cache.StorageError{Err: err}
	}

	var firstParty, external []models.UnifiedMetadata
	for _, ch := range channels {
		if ch.IsExternal() {
			external = append(external, ch)
		} else {
			firstParty = append(firstParty, ch)
		}
	}

	fp := pool.NewWithResults[[]models.UnifiedMetadata]().WithMaxGoroutines(firstPartyFanout)
	for _, ch := range firstParty {
		fp.Go(func() []models.UnifiedMetadata {
			return r.favoriteFirstParty(ctx, ch.ChannelID)
		})
	}

	xp := pool.NewWithResults[[]models.UnifiedMetadata]().WithMaxGoroutines(externalFanout)
	for _, ch := range external {
		xp.Go(func() []models.UnifiedMetadata {
			return r.favoriteExternal(ctx, ch.ChannelID, ch.Title)
		})
	}

	var union []models.UnifiedMetadata
	for _, batch := range fp.Wait() {
		union = append(union, batch...)
	}
	for _, batch := range xp.Wait() {
		union = append(union, batch...)
	}

	union = dedupeByID(union)

	kept := union[:0]
	for _, m := range union {
		if m.Duration > 60 {
			kept = append(kept, m)
		}
	}

	// Newest first; unparsable timestamps sort as oldest
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].AvailableAtTime().After(kept[j].AvailableAtTime())
	})

	total := len(kept)
	page := paginate(kept, key.Offset, PageSize)

	if err := r.repos.Metadata.UpsertBatch(ctx, page); err != nil {
		return nil, &cache.StorageError{Err: err}
	}
	return &cache.FetcherResult[models.UnifiedMetadata]{Items: page, TotalAvailable: &total}, nil
}

// favoriteFirstParty fetches one first-party channel's recent music
// videos. Failures contribute an empty list; one bad channel never
// aborts the aggregate.
func (r *Repository) favoriteFirstParty(ctx context.Context, channelID string) []models.UnifiedMetadata {
	videos, err := r.api.ChannelVideos(ctx, channelID, 0, PageSize)
	if err != nil {
		r.log.Warn().Str("channel_id", channelID).Err(err).Msg("favorite channel fetch failed")
		return nil
	}

	var metas []models.UnifiedMetadata
	for i := range videos {
		if IsMusicContent(&videos[i]) {
			metas = append(metas, MetadataFromVideo(&videos[i]))
		}
	}
	return metas
}

// favoriteExternal scrapes one external channel's videos tab. Failures
// contribute an empty list.
func (r *Repository) favoriteExternal(ctx context.Context, channelID, channelName string) []models.UnifiedMetadata {
	page, err := r.ext.ListChannelVideos(ctx, channelID, "")
	if err != nil {
		r.log.Warn().Str("channel_id", channelID).Err(err).Msg("external channel scrape failed")
		return nil
	}

	var metas []models.UnifiedMetadata
	for i := range page.Items {
		v := &page.Items[i]
		probe := holodex.VideoItem{
			Title:    v.Title,
			Duration: v.DurationSeconds,
			Channel:  holodex.ChannelRef{Name: channelName},
		}
		if !IsMusicContent(&probe) {
			continue
		}
		metas = append(metas, MetadataFromScraped(v, channelID, channelName))
	}
	return metas
}

// decorate joins metadata rows with their current like/download state.
// A store failure degrades to undecorated items rather than failing
// the read.
func (r *Repository) decorate(ctx context.Context, metas []models.UnifiedMetadata) []models.DisplayItem {
	ids := make([]string, len(metas))
	for i, m := range metas {
		ids[i] = m.ID
	}

	byID := make(map[string]models.ItemWithStatus)
	rows, err := r.repos.Metadata.ItemsWithStatus(ctx, ids)
	if err != nil {
		r.log.Warn().Err(err).Msg("status decoration failed")
	} else {
		for _, row := range rows {
			byID[row.ID] = row
		}
	}

	items := make([]models.DisplayItem, 0, len(metas))
	for i := range metas {
		if row, ok := byID[metas[i].ID]; ok {
			items = append(items, row.ToDisplayItem())
			continue
		}
		plain := models.ItemWithStatus{UnifiedMetadata: metas[i]}
		items = append(items, plain.ToDisplayItem())
	}
	return items
}

func statusMatches(want, got string) bool {
	if want == "live" {
		return got == "live" || got == "upcoming"
	}
	return got == want
}

func dedupeByID(metas []models.UnifiedMetadata) []models.UnifiedMetadata {
	seen := make(map[string]struct{}, len(metas))
	out := metas[:0]
	for _, m := range metas {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func paginate(metas []models.UnifiedMetadata, offset, limit int) []models.UnifiedMetadata {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(metas) {
		return nil
	}
	end := offset + limit
	if end > len(metas) {
		end = len(metas)
	}
	return metas[offset:end]
}
