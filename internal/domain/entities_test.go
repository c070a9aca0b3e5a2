package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredential_Valid(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"empty token", Credential{}, false},
		{"api key never expires", Credential{Token: "k", Source: CredentialAPIKey}, true},
		{"login before expiry", Credential{Token: "t", Expiry: now.Add(time.Hour)}, true},
		{"login at expiry", Credential{Token: "t", Expiry: now}, false},
		{"login after expiry", Credential{Token: "t", Expiry: now.Add(-time.Second)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.Valid(now))
		})
	}
}

func TestNowPlaying_Title(t *testing.T) {
	tests := []struct {
		name string
		np   NowPlaying
		want string
	}{
		{"movie", NowPlaying{Name: "Heat", Type: "Movie"}, "Heat"},
		{"episode", NowPlaying{Name: "Pilot", Type: "Episode", SeriesName: "Lost", SeasonNumber: 1, EpisodeNumber: 2}, "Lost - S01E02 - Pilot"},
		{"episode without series", NowPlaying{Name: "Pilot", Type: "Episode"}, "Unknown Series - S00E00 - Pilot"},
		{"no name", NowPlaying{Type: "Movie"}, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.np.Title())
		})
	}
}

func TestNowPlaying_ProgressAndResolution(t *testing.T) {
	np := NowPlaying{RunTimeTicks: 400, PositionTicks: 100, Width: 1920, Height: 1080}
	assert.InDelta(t, 25.0, np.Progress(), 0.001)
	assert.Equal(t, "1920x1080", np.Resolution())

	var empty NowPlaying
	assert.Zero(t, empty.Progress())
	assert.Equal(t, "Unknown", empty.Resolution())
}

func TestActiveStreams(t *testing.T) {
	sessions := []Session{
		{ID: "1"},
		{ID: "2", NowPlaying: &NowPlaying{Name: "A"}},
		{ID: "3", NowPlaying: &NowPlaying{Name: "B"}},
	}

	active := ActiveStreams(sessions)
	assert.Len(t, active, 2)
	assert.Equal(t, "2", active[0].ID)
	assert.Empty(t, ActiveStreams(nil))
}

func TestLibrarySnapshot_Clone(t *testing.T) {
	episodes := 10
	orig := LibrarySnapshot{
		"a": {LibraryID: "a", ItemCount: 3, EpisodeCount: &episodes},
		"b": {LibraryID: "b", ItemCount: 4},
	}

	clone := orig.Clone()
	*clone["a"].EpisodeCount = 99
	clone["b"] = LibraryStats{LibraryID: "b", ItemCount: 0}

	assert.Equal(t, 10, *orig["a"].EpisodeCount)
	assert.Equal(t, 4, orig["b"].ItemCount)
	assert.Equal(t, 7, orig.TotalItems())
}

func TestCacheEntry_Fresh(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour

	assert.False(t, CacheEntry{}.Fresh(now, ttl))
	assert.True(t, CacheEntry{FetchedAt: now.Add(-ttl)}.Fresh(now, ttl))
	assert.False(t, CacheEntry{FetchedAt: now.Add(-ttl - time.Second)}.Fresh(now, ttl))
}
