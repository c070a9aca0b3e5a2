package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/store"
)

func newLibraryFixture(t *testing.T, sections config.SectionsConfig) (*LibraryService, *fakeClient, *fakeClock) {
	t.Helper()

	client := &fakeClient{
		libraries: []domain.Library{
			{ID: "m1", Name: "Movies", CollectionType: "movies"},
			{ID: "t1", Name: "TV Shows", CollectionType: "tvshows"},
			{ID: "a1", Name: "Anime"},
		},
		counts: map[string]domain.ItemCounts{
			"m1": {Movies: 120},
			"t1": {Series: 10, Episodes: 300},
			"a1": {Series: 4, Episodes: 48},
		},
	}

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := newFakeClock()
	session := NewSessionService(client, Credentials{APIKey: "key"}, testLogger)
	session.now = clock.Now

	svc := NewLibraryService(client, session, nil, st, LibraryOptions{TTL: 15 * time.Minute, Sections: sections}, testLogger)
	svc.now = clock.Now
	return svc, client, clock
}

func TestLibraryStats_CachedWithinTTL(t *testing.T) {
	svc, client, clock := newLibraryFixture(t, config.SectionsConfig{ShowAll: true})

	first, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 3)

	clock.Advance(10 * time.Minute)
	second, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.libCalls)
	assert.Equal(t, 3, client.itemCalls)

	clock.Advance(6 * time.Minute)
	_, err = svc.LibraryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.libCalls, "expired entry is refetched")
}

func TestLibraryStats_Counts(t *testing.T) {
	svc, _, _ := newLibraryFixture(t, config.SectionsConfig{ShowAll: true})

	snapshot, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)

	movies := snapshot["m1"]
	assert.Equal(t, 120, movies.ItemCount)
	assert.Equal(t, "🎬", movies.Emoji)
	assert.Nil(t, movies.EpisodeCount)

	tv := snapshot["t1"]
	assert.Equal(t, 10, tv.ItemCount, "episodes are not part of the item count")
	assert.Nil(t, tv.EpisodeCount, "episodes are hidden unless enabled")
}

func TestLibraryStats_SectionFilter(t *testing.T) {
	sections := config.SectionsConfig{
		ShowAll: false,
		Sections: map[string]config.SectionConfig{
			"m1":    {DisplayName: "Films", Emoji: "🍿"},
			"anime": {DisplayName: "Anime Shows", ShowEpisodes: true},
			"music": {DisplayName: "Music"},
		},
	}
	svc, _, _ := newLibraryFixture(t, sections)

	snapshot, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.NotContains(t, snapshot, "t1")

	films := snapshot["m1"]
	assert.Equal(t, "Films", films.DisplayName)
	assert.Equal(t, "🍿", films.Emoji)

	anime := snapshot["a1"]
	assert.Equal(t, "Anime Shows", anime.DisplayName)
	assert.Equal(t, "🎌", anime.Emoji, "missing emoji falls back to the classifier")
	require.NotNil(t, anime.EpisodeCount)
	assert.Equal(t, 48, *anime.EpisodeCount)
}

func TestLibraryStats_StaleOnFailure(t *testing.T) {
	svc, client, clock := newLibraryFixture(t, config.SectionsConfig{ShowAll: true})

	good, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	fetchedAt := svc.Cached().FetchedAt

	clock.Advance(20 * time.Minute)
	client.set(func(f *fakeClient) { f.libsErr = domain.ErrAuthFailed })

	stale, err := svc.LibraryStats(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.Equal(t, good, stale)
	assert.Equal(t, fetchedAt, svc.Cached().FetchedAt)

	// Not advanced, so the next call tries again
	_, _ = svc.LibraryStats(context.Background())
	assert.Equal(t, 3, client.libCalls)
}

func TestLibraryStats_PartialFailureKeepsPreviousSnapshot(t *testing.T) {
	svc, client, clock := newLibraryFixture(t, config.SectionsConfig{ShowAll: true})

	good, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	client.set(func(f *fakeClient) {
		f.counts = map[string]domain.ItemCounts{"m1": {Movies: 999}}
		f.itemsErr = map[string]error{"t1": domain.ErrServerOffline}
	})

	snapshot, err := svc.LibraryStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, good, snapshot)
	assert.Equal(t, 120, snapshot["m1"].ItemCount)
}

func TestLibraryStats_EmptyWhenNeverFetched(t *testing.T) {
	svc, client, _ := newLibraryFixture(t, config.SectionsConfig{ShowAll: true})
	client.set(func(f *fakeClient) { f.probeErr = domain.ErrServerOffline })

	snapshot, err := svc.LibraryStats(context.Background())
	require.Error(t, err)
	assert.Empty(t, snapshot)
}

func TestLibraryService_RestoresFromStore(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer st.Close()

	entry := domain.CacheEntry{
		Snapshot:  domain.LibrarySnapshot{"m1": {LibraryID: "m1", Name: "Movies", DisplayName: "Movies", ItemCount: 7}},
		FetchedAt: time.Now(),
		Sections:  config.SectionsConfig{}.Fingerprint(),
	}
	require.NoError(t, st.SaveLibrarySnapshot(entry))

	client := &fakeClient{}
	session := NewSessionService(client, Credentials{APIKey: "key"}, testLogger)
	svc := NewLibraryService(client, session, nil, st, LibraryOptions{}, testLogger)

	snapshot, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, snapshot["m1"].ItemCount)
	assert.Equal(t, 0, client.libCalls)
}

func TestLibraryService_RestoredSnapshotFromOtherSections(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer st.Close()

	before := config.SectionsConfig{Sections: map[string]config.SectionConfig{"t1": {}}}
	require.NoError(t, st.SaveLibrarySnapshot(domain.CacheEntry{
		Snapshot:  domain.LibrarySnapshot{"t1": {LibraryID: "t1", Name: "TV Shows", DisplayName: "TV Shows", ItemCount: 10, SeriesCount: 10}},
		FetchedAt: time.Now().Add(-time.Minute),
		Sections:  before.Fingerprint(),
	}))

	client := &fakeClient{
		libraries: []domain.Library{{ID: "t1", Name: "TV Shows", CollectionType: "tvshows"}},
		counts:    map[string]domain.ItemCounts{"t1": {Series: 10, Episodes: 300}},
	}
	session := NewSessionService(client, Credentials{APIKey: "key"}, testLogger)
	after := config.SectionsConfig{Sections: map[string]config.SectionConfig{
		"t1": {DisplayName: "Series", ShowEpisodes: true},
	}}
	svc := NewLibraryService(client, session, nil, st, LibraryOptions{Sections: after}, testLogger)

	assert.True(t, svc.Cached().FetchedAt.IsZero(), "restored snapshot is stale")
	assert.Equal(t, "TV Shows", svc.Cached().Snapshot["t1"].DisplayName, "kept as fallback")

	snapshot, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.libCalls)
	assert.Equal(t, "Series", snapshot["t1"].DisplayName)
	assert.True(t, snapshot["t1"].ShowEpisodes)
	require.NotNil(t, snapshot["t1"].EpisodeCount)
	assert.Equal(t, 300, *snapshot["t1"].EpisodeCount)

	saved, ok := st.GetLibrarySnapshot()
	require.True(t, ok)
	assert.Equal(t, after.Fingerprint(), saved.Sections)
}

func TestLibraryService_RestoredSnapshotServedWhenRefetchFails(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SaveLibrarySnapshot(domain.CacheEntry{
		Snapshot:  domain.LibrarySnapshot{"m1": {LibraryID: "m1", Name: "Movies", DisplayName: "Movies", ItemCount: 7}},
		FetchedAt: time.Now(),
		Sections:  "other",
	}))

	client := &fakeClient{libsErr: domain.ErrServerOffline}
	session := NewSessionService(client, Credentials{APIKey: "key"}, testLogger)
	svc := NewLibraryService(client, session, nil, st, LibraryOptions{}, testLogger)

	snapshot, err := svc.LibraryStats(context.Background())
	assert.ErrorIs(t, err, domain.ErrServerOffline)
	assert.Equal(t, 7, snapshot["m1"].ItemCount)
}

func TestLibraryService_SetSections(t *testing.T) {
	sections := config.SectionsConfig{ShowAll: true}
	svc, client, _ := newLibraryFixture(t, sections)

	_, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)

	svc.SetSections(sections)
	_, err = svc.LibraryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.libCalls, "same settings keep the cache")

	svc.SetSections(config.SectionsConfig{Sections: map[string]config.SectionConfig{"m1": {DisplayName: "Films"}}})
	snapshot, err := svc.LibraryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, client.libCalls)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Films", snapshot["m1"].DisplayName)
}

func TestSyncSections(t *testing.T) {
	svc, _, _ := newLibraryFixture(t, config.SectionsConfig{
		ShowAll:  true,
		Sections: map[string]config.SectionConfig{"m1": {DisplayName: "Films", Emoji: "🍿"}},
	})

	out, err := svc.SyncSections(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, out.ShowAll)
	require.Len(t, out.Sections, 3)
	assert.Equal(t, "Films", out.Sections["m1"].DisplayName, "existing overrides are kept")
	assert.Equal(t, "📺", out.Sections["t1"].Emoji)

	byName, err := svc.SyncSections(context.Background(), true)
	require.NoError(t, err)
	assert.Contains(t, byName.Sections, "tv shows")
}
