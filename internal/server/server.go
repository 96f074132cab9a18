// Package server wires the subsystem together and drives its
// background work: periodic account synchronization and cache sweeps.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"utadex/internal/channels"
	"utadex/internal/config"
	"utadex/internal/db"
	"utadex/internal/discovery"
	"utadex/internal/extractor"
	"utadex/internal/feed"
	"utadex/internal/holodex"
	"utadex/internal/logger"
	"utadex/internal/playlist"
	"utadex/internal/streamurl"
	"utadex/internal/syncer"
	"utadex/internal/video"
)

// sweptPageMaxAge is how old a cached list page may grow before the
// periodic sweep removes it from the store
const sweptPageMaxAge = 7 * 24 * time.Hour

// orphanRetention is how long unreferenced metadata rows survive
// before the sweep prunes them
const orphanRetention = 24 * time.Hour

// Server owns the repositories and services and runs the background
// loops
type Server struct {
	config *config.Config
	db     *db.DB
	repos  *db.Repositories

	Feeds     *feed.Repository
	Channels  *channels.Repository
	Videos    *video.Repository
	Streams   *streamurl.Resolver
	Discovery *discovery.Repository
	Playlists *playlist.Service

	coordinator *syncer.Coordinator
	stop        chan struct{}
	done        chan struct{}
	log         zerolog.Logger
}

// New creates a server instance with every service wired
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)

	httpc := &http.Client{Timeout: cfg.API.Timeout}
	api := holodex.NewClient(cfg.API.BaseURL, cfg.API.APIKey, httpc)
	music := holodex.NewMusicClient(cfg.API.MusicBaseURL, cfg.API.JWT, httpc)
	ext := extractor.New(nil, cfg.Extractor.RatePerSecond)

	feeds := feed.NewRepository(api, music, ext, repos, feed.Config{
		BrowseTTL:      cfg.Cache.BrowseTTL,
		BrowseStaleTTL: cfg.Cache.BrowseStaleTTL,
		SearchTTL:      cfg.Cache.SearchTTL,
		SearchStaleTTL: cfg.Cache.SearchStaleTTL,
	})
	chans := channels.NewRepository(api, ext, repos)
	videos := video.NewRepository(api, repos)
	streams := streamurl.NewResolver(ext, extractor.Quality(cfg.Audio.Quality),
		cfg.Cache.StreamURLCapacity, cfg.Cache.StreamURLTTL)
	disco := discovery.NewRepository(music, repos.Pages, cfg.Cache.DiscoveryTTL)
	playlists := playlist.NewService(repos, music, videos)

	coordinator := syncer.NewCoordinator(
		syncer.NewLikesSynchronizer(repos, music, videos),
		syncer.NewFavoriteChannelsSynchronizer(repos, music),
		syncer.NewStarredSynchronizer(repos, music),
		syncer.NewPlaylistSynchronizer(playlists),
	)

	return &Server{
		config:      cfg,
		db:          database,
		repos:       repos,
		Feeds:       feeds,
		Channels:    chans,
		Videos:      videos,
		Streams:     streams,
		Discovery:   disco,
		Playlists:   playlists,
		coordinator: coordinator,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		log:         logger.With("server"),
	}
}

// Start launches the sync and sweep loops. It returns immediately;
// the loops run until Shutdown.
func (s *Server) Start() {
	go s.run()
}

func (s *Server) run() {
	defer close(s.done)

	syncTicker := time.NewTicker(s.config.Sync.Interval)
	defer syncTicker.Stop()
	sweepTicker := time.NewTicker(s.config.Sync.SweepInterval)
	defer sweepTicker.Stop()

	// First round right away so a fresh start converges without
	// waiting out a full interval
	s.runSync()

	for {
		select {
		case <-syncTicker.C:
			s.runSync()
		case <-sweepTicker.C:
			s.runSweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Server) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Sync.Interval)
	defer cancel()
	s.coordinator.Run(ctx)
}

func (s *Server) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	swept, err := s.Feeds.CleanupExpired(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("feed cache sweep failed")
	}

	cutoff := time.Now().Add(-sweptPageMaxAge)
	evicted, err := s.repos.Pages.EvictOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Warn().Err(err).Msg("cache sweep failed")
		return
	}
	if swept+evicted > 0 {
		s.log.Info().Int64("pages", swept+evicted).Msg("swept expired cache pages")
	}

	pruned, err := s.repos.Metadata.Prune(ctx, time.Now().Add(-orphanRetention))
	if err != nil {
		s.log.Warn().Err(err).Msg("metadata prune failed")
		return
	}
	if pruned > 0 {
		s.log.Info().Int64("rows", pruned).Msg("pruned orphaned metadata")
	}
}

// Shutdown stops the background loops and closes the database
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down")

	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.db.Close()
}
