// Package model holds the data types shared across the resolver, planner, and
// indexer components.
package model

import "time"

// AnimeTitle carries the title variants a mapping or catalog entry may have.
// At least one field must be non-empty for a mapping to be searchable.
type AnimeTitle struct {
	Romaji   string   `json:"romaji,omitempty"`
	English  string   `json:"english,omitempty"`
	Native   string   `json:"native,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Empty reports whether none of the title facets carry a value.
func (t AnimeTitle) Empty() bool {
	return t.Romaji == "" && t.English == "" && t.Native == "" && len(t.Synonyms) == 0
}

// SeasonShape is one entry of a mapping's season-to-episode-count table.
type SeasonShape struct {
	Season   int `json:"season"`
	Episodes int `json:"episodes"`
}

// AnimeMapping is the canonical record the resolver produces for a televised-series id.
type AnimeMapping struct {
	TVDBID        int           `json:"tvdb_id"`
	AnilistID     *int          `json:"anilist_id,omitempty"`
	MALID         *int          `json:"mal_id,omitempty"`
	Titles        AnimeTitle    `json:"titles"`
	TotalEpisodes int           `json:"total_episodes"`
	SeasonInfo    []SeasonShape `json:"season_info,omitempty"`
	LastUpdated   time.Time     `json:"last_updated"`
	UserOverride  bool          `json:"user_override"`
}

// MappingOverride is an administrator-supplied override for one series id.
type MappingOverride struct {
	TVDBID                 int            `json:"tvdb_id"`
	AnilistID              *int           `json:"anilist_id,omitempty"`
	MALID                  *int           `json:"mal_id,omitempty"`
	CustomTitles           []string       `json:"custom_titles,omitempty"`
	SeasonEpisodeOverrides map[string]int `json:"season_episode_overrides,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
}

// SearchResult is one release as returned by an indexer, before Torznab rendering.
type SearchResult struct {
	Title    string    `json:"title"`
	GUID     string    `json:"guid"`
	Link     string    `json:"link"`
	InfoURL  string    `json:"info_url,omitempty"`
	PubDate  time.Time `json:"pub_date"`
	Size     int64     `json:"size"`
	Seeders  int       `json:"seeders"`
	Peers    int       `json:"peers"`
	Indexer  string    `json:"indexer"`
	Category []int     `json:"category"`
}

// EpisodeInfo describes one episode as known by the PVR.
type EpisodeInfo struct {
	SeriesID             int
	SeriesTitle          string
	SeasonNumber         int
	EpisodeNumber        int
	AbsoluteEpisodeNumber *int
	Monitored            bool
	HasFile              bool
}

// IsSpecial reports whether the episode belongs to season 0.
func (e EpisodeInfo) IsSpecial() bool {
	return e.SeasonNumber == 0
}
