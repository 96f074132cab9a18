package holodex

// SearchCondition is one free-text condition of a video search
type SearchCondition struct {
	Text string `json:"text"`
}

// VideoSearchRequest is the body of the advanced video search endpoint
type VideoSearchRequest struct {
	Sort       string            `json:"sort,omitempty"`
	Lang       []string          `json:"lang,omitempty"`
	Target     []string          `json:"target,omitempty"`
	Conditions []SearchCondition `json:"conditions,omitempty"`
	Topic      []string          `json:"topic,omitempty"`
	Vch        []string          `json:"vch,omitempty"`
	Org        []string          `json:"org,omitempty"`
	Comment    []string          `json:"comment,omitempty"`
	Paginated  bool              `json:"paginated"`
	Offset     int               `json:"offset"`
	Limit      int               `json:"limit"`
}

// VideoSearchResponse is a paginated page of video items
type VideoSearchResponse struct {
	Total int         `json:"total"`
	Items []VideoItem `json:"items"`
}

// ChannelRef is the embedded channel block on a video item
type ChannelRef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	EnglishName *string `json:"english_name"`
	Org         *string `json:"org"`
	Photo       *string `json:"photo"`
}

// VideoItem is one video as returned by search, channel listing, and
// video detail endpoints
type VideoItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	TopicID     *string    `json:"topic_id"`
	Status      string     `json:"status"`
	Duration    int64      `json:"duration"`
	SongCount   int        `json:"songcount"`
	AvailableAt *string    `json:"available_at"`
	PublishedAt *string    `json:"published_at"`
	Channel     ChannelRef `json:"channel"`
}

// ChannelDetails is the full channel record
type ChannelDetails struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	EnglishName     *string `json:"english_name"`
	Org             *string `json:"org"`
	Suborg          *string `json:"suborg"`
	Photo           *string `json:"photo"`
	Banner          *string `json:"banner"`
	SubscriberCount *string `json:"subscriber_count"`
	VideoCount      *string `json:"video_count"`
	Description     *string `json:"description"`
	Inactive        bool    `json:"inactive"`
}

// Song is one tagged song segment inside a video, carrying the
// server-side song id sync needs
type Song struct {
	ID             *int    `json:"id"`
	Name           string  `json:"name"`
	OriginalArtist string  `json:"original_artist"`
	Art            *string `json:"art"`
	Start          int     `json:"start"`
	End            int     `json:"end"`
	VideoID        string  `json:"video_id"`
	ChannelID      string  `json:"channel_id"`
	ItunesID       *int64  `json:"itunesid"`
}

// VideoWithSongs is the video detail response including its song list
type VideoWithSongs struct {
	VideoItem
	Songs []Song `json:"songs"`
}

// Org is one entry of the organization listing
type Org struct {
	Name  string  `json:"name"`
	Short *string `json:"short"`
}

// Playlist is a server-side playlist with its content
type Playlist struct {
	ID          *int64  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Owner       *int64  `json:"owner"`
	Type        string  `json:"type"`
	UpdatedAt   *string `json:"updated_at"`
	Content     []Song  `json:"content"`
}

// PlaylistStub is a playlist header without content, as returned by
// listing endpoints
type PlaylistStub struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Type        string  `json:"type"`
	SongCount   int     `json:"songcount"`
	Art         *string `json:"art"`
}

// PlaylistWriteRequest is the upsert body for an owned playlist. The
// content list holds server-side song ids in play order.
type PlaylistWriteRequest struct {
	ID          *int64  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Content     []int   `json:"content"`
}

// LikesPage is one page of the user's liked songs
type LikesPage struct {
	Items []Song `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
}

// FavoriteChannel is one entry of a user's favorite channel list
type FavoriteChannel struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	EnglishName *string `json:"english_name"`
	Org         *string `json:"org"`
	Photo       *string `json:"photo"`
}

// PatchOperation mutates the favorite channel list
type PatchOperation struct {
	Op        string `json:"op"`
	ChannelID string `json:"channel_id"`
}

// DiscoveryResponse is the hub payload for an org, channel, or the
// user's favorites
type DiscoveryResponse struct {
	RecommendedVideos    []VideoItem    `json:"recommended,omitempty"`
	RecentSingingStreams []VideoItem    `json:"recentSingingStreams,omitempty"`
	Radios               []PlaylistStub `json:"radios,omitempty"`
	Playlists            []PlaylistStub `json:"playlists,omitempty"`
	Channels             []ChannelRef   `json:"channels,omitempty"`
}
