// Package discovery serves the discovery hub shelves (recommended
// videos, radios, playlists) from a db-backed TTL cache.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"utadex/internal/cache"
	"utadex/internal/db"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// Scope selects which discovery shelf set to load
type Scope struct {
	Org       string
	ChannelID string
	Favorites bool
}

func (s Scope) key() string {
	switch {
	case s.Favorites:
		return "favorites"
	case s.ChannelID != "":
		return "channel_" + s.ChannelID
	default:
		return "org_" + s.Org
	}
}

// Repository reads discovery content stale-while-revalidate: a fresh
// row returns immediately, a stale row returns immediately and kicks
// off a background refresh, a missing row fetches synchronously.
type Repository struct {
	music *holodex.MusicClient
	pages *db.PageRepository
	ttl   time.Duration

	mu         sync.Mutex
	refreshing map[string]struct{}

	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates the discovery repository with the given
// freshness window
func NewRepository(music *holodex.MusicClient, pages *db.PageRepository, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Repository{
		music:      music,
		pages:      pages,
		ttl:        ttl,
		refreshing: make(map[string]struct{}),
		now:        time.Now,
		log:        logger.With("discovery"),
	}
}

// Get resolves one discovery scope. Stale content is served as-is
// while a background refresh replaces the stored row for the next
// caller.
func (r *Repository) Get(ctx context.Context, scope Scope) (*holodex.DiscoveryResponse, error) {
	key := scope.key()

	row, err := r.pages.GetDiscovery(ctx, key)
	switch {
	case err == nil:
		resp, decErr := decode(row.Data)
		if decErr != nil {
			r.log.Warn().Str("key", key).Err(decErr).Msg("corrupt discovery row, refetching")
			return r.fetchAndStore(ctx, scope)
		}
		if r.now().Sub(time.UnixMilli(row.Timestamp)) > r.ttl {
			r.refreshAsync(scope)
		}
		return resp, nil
	case errors.Is(err, db.ErrNotFound):
		return r.fetchAndStore(ctx, scope)
	default:
		return nil, &cache.StorageError{Err: err}
	}
}

// Refresh forces a synchronous refetch of one scope
func (r *Repository) Refresh(ctx context.Context, scope Scope) (*holodex.DiscoveryResponse, error) {
	return r.fetchAndStore(ctx, scope)
}

func (r *Repository) fetchAndStore(ctx context.Context, scope Scope) (*holodex.DiscoveryResponse, error) {
	resp, err := r.fetch(ctx, scope)
	if err != nil {
		return nil, &cache.NetworkError{Err: err}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode discovery payload: %w", err)
	}
	row := &models.DiscoveryPage{
		PageKey:   scope.key(),
		Data:      data,
		Timestamp: r.now().UnixMilli(),
	}
	if err := r.pages.PutDiscovery(ctx, row); err != nil {
		return nil, &cache.StorageError{Err: err}
	}
	return resp, nil
}

// RadioContent resolves one of the hub's radios to its current song
// list. Radio content rotates server-side, so it is never cached.
func (r *Repository) RadioContent(ctx context.Context, radioID string) (*holodex.Playlist, error) {
	resp, err := r.music.RadioContent(ctx, radioID)
	if err != nil {
		return nil, &cache.NetworkError{Err: err}
	}
	return resp, nil
}

// OrgPlaylists lists an organization's curated playlist headers
func (r *Repository) OrgPlaylists(ctx context.Context, org string) ([]holodex.PlaylistStub, error) {
	stubs, err := r.music.OrgPlaylists(ctx, org)
	if err != nil {
		return nil, &cache.NetworkError{Err: err}
	}
	return stubs, nil
}

func (r *Repository) fetch(ctx context.Context, scope Scope) (*holodex.DiscoveryResponse, error) {
	switch {
	case scope.Favorites:
		return r.music.DiscoveryForFavorites(ctx)
	case scope.ChannelID != "":
		return r.music.DiscoveryForChannel(ctx, scope.ChannelID)
	default:
		return r.music.DiscoveryForOrg(ctx, scope.Org)
	}
}

// refreshAsync starts at most one background refresh per key. The
// caller already holds a usable stale payload, so refresh failures are
// only logged.
func (r *Repository) refreshAsync(scope Scope) {
	key := scope.key()

	r.mu.Lock()
	if _, busy := r.refreshing[key]; busy {
		r.mu.Unlock()
		return
	}
	r.refreshing[key] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.refreshing, key)
			r.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := r.fetchAndStore(ctx, scope); err != nil {
			r.log.Warn().Str("key", key).Err(err).Msg("background discovery refresh failed")
		}
	}()
}

func decode(data []byte) (*holodex.DiscoveryResponse, error) {
	var resp holodex.DiscoveryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
