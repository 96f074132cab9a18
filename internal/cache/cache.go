package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"utadex/internal/db"
	"utadex/internal/logger"
	"utadex/internal/models"
)

// Policy selects how a read balances cached data against the network
type Policy int

const (
	// CacheFirst serves a fresh cached page if one exists, otherwise
	// fetches. A failed fetch falls back to stale cache.
	CacheFirst Policy = iota
	// NetworkFirst always fetches. A failed fetch falls back to stale
	// cache.
	NetworkFirst
	// CacheOnly serves a fresh cached page or fails with ErrNotFound.
	// Never touches the network.
	CacheOnly
	// NetworkOnly always fetches and stores, never reads cache, and
	// has no stale fallback.
	NetworkOnly
)

// Origin reports which tier a result was served from
type Origin int

const (
	OriginCache Origin = iota
	OriginNetwork
	OriginStaleCache
)

func (o Origin) String() string {
	switch o {
	case OriginCache:
		return "cache"
	case OriginNetwork:
		return "network"
	case OriginStaleCache:
		return "stale_cache"
	default:
		return "unknown"
	}
}

// Key identifies one cacheable page. StringKey must be stable and
// unique across the key's category.
type Key interface {
	StringKey() string
	Category() string
}

// FetcherResult is the envelope a fetcher produces and the engine
// caches: one page of items plus pagination hints
type FetcherResult[T any] struct {
	Items          []T     `json:"items"`
	TotalAvailable *int    `json:"totalAvailable,omitempty"`
	NextOffset     *int    `json:"nextOffset,omitempty"`
	NextCursor     *string `json:"nextCursor,omitempty"`
}

// Fetcher produces a page from the network for a key
type Fetcher[T any] func(ctx context.Context) (*FetcherResult[T], error)

// Result pairs a page with the tier it came from
type Result[T any] struct {
	Page   *FetcherResult[T]
	Origin Origin
}

// Store is the disk tier the engine persists pages into.
// *db.PageRepository satisfies it.
type Store interface {
	Get(ctx context.Context, pageKey string) (*models.CachedPage, error)
	Put(ctx context.Context, page *models.CachedPage) error
	EvictCategory(ctx context.Context, category string) error
	EvictCategoryOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error)
}

type memEntry[T any] struct {
	page     *FetcherResult[T]
	storedAt time.Time
}

const memCapacity = 64

// Engine is a two-tier page cache for one resource category: an
// in-memory LRU in front of the persisted page table. One engine per
// category, so the engine's fetch mutex doubles as the per-category
// network serialization point.
type Engine[T any] struct {
	category string
	store    Store
	ttl      time.Duration
	staleTTL time.Duration

	mem *lru.Cache[string, memEntry[T]]

	// Serializes network fetches for this category. Cache reads are
	// unaffected and interleave freely.
	netMu sync.Mutex

	now func() time.Time
	log zerolog.Logger
}

// NewEngine creates a cache engine for one category. ttl bounds how
// long an entry is fresh; staleTTL bounds how long it remains usable
// as a network-failure fallback.
func NewEngine[T any](category string, store Store, ttl, staleTTL time.Duration) *Engine[T] {
	mem, _ := lru.New[string, memEntry[T]](memCapacity)
	return &Engine[T]{
		category: category,
		store:    store,
		ttl:      ttl,
		staleTTL: staleTTL,
		mem:      mem,
		now:      time.Now,
		log:      logger.With("cache." + category),
	}
}

// Get returns the cached page for key if it exists and is fresh,
// otherwise ErrNotFound
func (e *Engine[T]) Get(ctx context.Context, key Key) (*FetcherResult[T], error) {
	return e.lookup(ctx, key, e.ttl)
}

// GetStale returns the most recent cached page for key regardless of
// freshness, as long as it is within the stale window
func (e *Engine[T]) GetStale(ctx context.Context, key Key) (*FetcherResult[T], error) {
	return e.lookup(ctx, key, e.staleTTL)
}

func (e *Engine[T]) lookup(ctx context.Context, key Key, maxAge time.Duration) (*FetcherResult[T], error) {
	k := key.StringKey()

	if entry, ok := e.mem.Get(k); ok {
		if e.now().Sub(entry.storedAt) <= maxAge {
			return entry.page, nil
		}
	}

	row, err := e.store.Get(ctx, k)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Err: err}
	}

	storedAt := time.UnixMilli(row.Timestamp)
	if e.now().Sub(storedAt) > maxAge {
		return nil, ErrNotFound
	}

	var items []T
	if err := json.Unmarshal(row.Data, &items); err != nil {
		return nil, &StorageError{Err: fmt.Errorf("failed to decode cached page: %w", err)}
	}
	page := &FetcherResult[T]{
		Items:          items,
		TotalAvailable: row.TotalAvailable,
		NextOffset:     row.NextOffset,
		NextCursor:     row.NextCursor,
	}
	e.mem.Add(k, memEntry[T]{page: page, storedAt: storedAt})
	return page, nil
}

// Store writes a page to both tiers
func (e *Engine[T]) Store(ctx context.Context, key Key, page *FetcherResult[T]) error {
	data, err := json.Marshal(page.Items)
	if err != nil {
		return &StorageError{Err: fmt.Errorf("failed to encode page: %w", err)}
	}

	now := e.now()
	row := &models.CachedPage{
		PageKey:        key.StringKey(),
		Category:       e.category,
		Data:           data,
		TotalAvailable: page.TotalAvailable,
		NextOffset:     page.NextOffset,
		NextCursor:     page.NextCursor,
		Timestamp:      now.UnixMilli(),
	}
	if err := e.store.Put(ctx, row); err != nil {
		return &StorageError{Err: err}
	}

	e.mem.Add(key.StringKey(), memEntry[T]{page: page, storedAt: now})
	return nil
}

// Clear drops both tiers for this category
func (e *Engine[T]) Clear(ctx context.Context) error {
	e.mem.Purge()
	if err := e.store.EvictCategory(ctx, e.category); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// CleanupExpired removes persisted pages for this category that have
// aged past the stale window and are no longer usable even as a
// network-failure fallback. The memory tier ages out on read, so only
// the disk tier needs sweeping.
func (e *Engine[T]) CleanupExpired(ctx context.Context) (int64, error) {
	evicted, err := e.store.EvictCategoryOlderThan(ctx, e.category, e.now().Add(-e.staleTTL))
	if err != nil {
		return 0, &StorageError{Err: err}
	}
	return evicted, nil
}

// Invalidate drops the memory tier only. The persisted rows remain
// available as a stale fallback until the next sweep.
func (e *Engine[T]) Invalidate() {
	e.mem.Purge()
}

// Fetch is the policy-driven read path. The fetcher is only invoked
// under the engine's network mutex.
func (e *Engine[T]) Fetch(ctx context.Context, key Key, policy Policy, fetcher Fetcher[T]) (*Result[T], error) {
	switch policy {
	case CacheOnly:
		page, err := e.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return &Result[T]{Page: page, Origin: OriginCache}, nil

	case CacheFirst:
		if page, err := e.Get(ctx, key); err == nil {
			return &Result[T]{Page: page, Origin: OriginCache}, nil
		}
		return e.fetchWithStaleFallback(ctx, key, fetcher)

	case NetworkFirst:
		return e.fetchWithStaleFallback(ctx, key, fetcher)

	case NetworkOnly:
		page, err := e.fetchAndStore(ctx, key, fetcher)
		if err != nil {
			return nil, err
		}
		return &Result[T]{Page: page, Origin: OriginNetwork}, nil

	default:
		return nil, fmt.Errorf("unknown cache policy %d", policy)
	}
}

func (e *Engine[T]) fetchWithStaleFallback(ctx context.Context, key Key, fetcher Fetcher[T]) (*Result[T], error) {
	page, err := e.fetchAndStore(ctx, key, fetcher)
	if err == nil {
		return &Result[T]{Page: page, Origin: OriginNetwork}, nil
	}
	if !IsNetworkError(err) {
		return nil, err
	}

	stale, staleErr := e.GetStale(ctx, key)
	if staleErr != nil {
		return nil, err
	}
	e.log.Warn().Str("key", key.StringKey()).Err(err).Msg("serving stale page after network failure")
	return &Result[T]{Page: stale, Origin: OriginStaleCache}, nil
}

func (e *Engine[T]) fetchAndStore(ctx context.Context, key Key, fetcher Fetcher[T]) (*FetcherResult[T], error) {
	e.netMu.Lock()
	defer e.netMu.Unlock()

	page, err := fetcher(ctx)
	if err != nil {
		var se *StorageError
		if IsNetworkError(err) || errors.As(err, &se) {
			return nil, err
		}
		return nil, &NetworkError{Err: err}
	}

	if err := e.Store(ctx, key, page); err != nil {
		return nil, err
	}
	return page, nil
}
