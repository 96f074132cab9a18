package models

// CachedPage stores one page of remote list data, keyed by the string form of
// a structured request descriptor. The category column groups pages by
// resource kind (browse, search) so sweeps and clears can target one kind.
type CachedPage struct {
	PageKey  string `gorm:"type:text;primaryKey;column:page_key"`
	Category string `gorm:"type:text;not null;column:category"`

	Data           []byte  `gorm:"type:blob;not null;column:data"`
	TotalAvailable *int    `gorm:"type:integer;column:total_available"`
	NextOffset     *int    `gorm:"type:integer;column:next_offset"`
	NextCursor     *string `gorm:"type:text;column:next_cursor"`

	// Unix milliseconds at write time, used for TTL/staleness computation.
	Timestamp int64 `gorm:"type:integer;not null;column:timestamp"`
}

// TableName overrides the GORM table name
func (CachedPage) TableName() string { return "cached_pages" }

// DiscoveryPage stores one discovery hub response (org, channel or favorites
// scoped) for the stale-while-revalidate read path.
type DiscoveryPage struct {
	PageKey   string `gorm:"type:text;primaryKey;column:page_key"`
	Data      []byte `gorm:"type:blob;not null;column:data"`
	Timestamp int64  `gorm:"type:integer;not null;column:timestamp"`
}

// TableName overrides the GORM table name
func (DiscoveryPage) TableName() string { return "discovery_pages" }
