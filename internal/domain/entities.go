package domain

import (
	"fmt"
	"time"
)

// ServerType identifies the media server backend
type ServerType string

const (
	ServerTypeEmby     ServerType = "emby"
	ServerTypeJellyfin ServerType = "jellyfin"
)

// DisplayName returns the product name shown to users
func (t ServerType) DisplayName() string {
	switch t {
	case ServerTypeEmby:
		return "Emby"
	case ServerTypeJellyfin:
		return "Jellyfin"
	default:
		return "Media Server"
	}
}

// CredentialSource records how a credential was obtained
type CredentialSource string

const (
	CredentialAPIKey CredentialSource = "api_key"
	CredentialLogin  CredentialSource = "login"
)

// Credential is the token attached to every authenticated request.
// A zero Expiry means the credential never expires.
type Credential struct {
	Token  string
	UserID string // Set for login credentials only
	Source CredentialSource
	Expiry time.Time
}

// Valid reports whether the credential can be reused at the given instant
func (c Credential) Valid(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	return c.Expiry.IsZero() || now.Before(c.Expiry)
}

// SystemInfo is the subset of /System/Info the dashboard uses
type SystemInfo struct {
	ID              string
	ServerName      string
	Version         string
	OperatingSystem string
	ProductName     string
}

// Library is a top-level media folder on the server
type Library struct {
	ID             string
	Name           string
	CollectionType string // "movies", "tvshows", "music", ... (may be empty)
}

// ItemCounts is the per-type tally of a library's items
type ItemCounts struct {
	Movies   int
	Series   int
	Episodes int
}

// LibraryStats is one dashboard entry
type LibraryStats struct {
	LibraryID    string `json:"library_id"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Emoji        string `json:"emoji"`
	Color        string `json:"color,omitempty"`
	ItemCount    int    `json:"item_count"` // Movies + series
	MovieCount   int    `json:"movie_count"`
	SeriesCount  int    `json:"series_count"`
	EpisodeCount *int   `json:"episode_count,omitempty"` // Only set when ShowEpisodes
	ShowEpisodes bool   `json:"show_episodes"`
}

// LibrarySnapshot maps library ID to its stats. Snapshots are replaced
// wholesale and never mutated after publication.
type LibrarySnapshot map[string]LibraryStats

// Clone returns an independent copy of the snapshot
func (s LibrarySnapshot) Clone() LibrarySnapshot {
	out := make(LibrarySnapshot, len(s))
	for id, stats := range s {
		if stats.EpisodeCount != nil {
			n := *stats.EpisodeCount
			stats.EpisodeCount = &n
		}
		out[id] = stats
	}
	return out
}

// TotalItems sums ItemCount across all libraries
func (s LibrarySnapshot) TotalItems() int {
	total := 0
	for _, stats := range s {
		total += stats.ItemCount
	}
	return total
}

// CacheEntry pairs a snapshot with the time it was fetched and the
// fingerprint of the section settings it was built under
type CacheEntry struct {
	Snapshot  LibrarySnapshot `json:"snapshot"`
	FetchedAt time.Time       `json:"fetched_at"`
	Sections  string          `json:"sections,omitempty"`
}

// Fresh reports whether the entry is still within ttl at now
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(e.FetchedAt) <= ttl
}

// Session is a client session reported by /Sessions
type Session struct {
	ID         string
	UserName   string
	Client     string
	DeviceName string
	NowPlaying *NowPlaying // nil when the session is idle
}

// NowPlaying describes the item a session is streaming
type NowPlaying struct {
	Name          string
	Type          string // "Movie", "Episode", ...
	SeriesName    string
	SeasonNumber  int
	EpisodeNumber int
	RunTimeTicks  int64
	PositionTicks int64
	Width         int
	Height        int
	IsPaused      bool
}

// Title returns the display title, "Series - S01E02 - Name" for episodes
func (n NowPlaying) Title() string {
	if n.Type == "Episode" {
		series := n.SeriesName
		if series == "" {
			series = "Unknown Series"
		}
		return fmt.Sprintf("%s - S%02dE%02d - %s", series, n.SeasonNumber, n.EpisodeNumber, n.Name)
	}
	if n.Name == "" {
		return "Unknown"
	}
	return n.Name
}

// Progress returns playback progress in percent
func (n NowPlaying) Progress() float64 {
	if n.RunTimeTicks <= 0 {
		return 0
	}
	return float64(n.PositionTicks) / float64(n.RunTimeTicks) * 100
}

// Resolution returns "WxH" or "Unknown"
func (n NowPlaying) Resolution() string {
	if n.Width == 0 && n.Height == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%dx%d", n.Width, n.Height)
}

// ActiveStreams returns the sessions that are currently playing something
func ActiveStreams(sessions []Session) []Session {
	var active []Session
	for _, s := range sessions {
		if s.NowPlaying != nil {
			active = append(active, s)
		}
	}
	return active
}

// ServerStatus is derived on every poll
type ServerStatus struct {
	Online        bool
	Uptime        string
	ActiveStreams int
	OfflineSince  time.Time // Zero while online
}

// DashboardState is the persisted identity of the published message
type DashboardState struct {
	MessageID      string    `json:"message_id"`
	LastRenderedAt time.Time `json:"last_rendered_at"`
}

// Dashboard is a rendered, platform-neutral dashboard message
type Dashboard struct {
	Title         string
	Description   string
	Color         int
	ThumbnailURL  string
	Fields        []DashboardField
	Footer        string
	FooterIconURL string
	Timestamp     time.Time
}

// DashboardField is one titled block of the dashboard
type DashboardField struct {
	Name   string
	Value  string
	Inline bool
}
