package db

// Repositories holds all repository instances along with the shared
// change bus
type Repositories struct {
	Metadata     *MetadataRepository
	Interactions *InteractionRepository
	Playlists    *PlaylistRepository
	Starred      *StarredRepository
	Pages        *PageRepository

	Notifier *Notifier
}

// NewRepositories creates all repositories with the given database
// connection, wired to a single Notifier
func NewRepositories(db *DB) *Repositories {
	notifier := NewNotifier()
	return &Repositories{
		Metadata:     NewMetadataRepository(db, notifier),
		Interactions: NewInteractionRepository(db, notifier),
		Playlists:    NewPlaylistRepository(db, notifier),
		Starred:      NewStarredRepository(db, notifier),
		Pages:        NewPageRepository(db),
		Notifier:     notifier,
	}
}
