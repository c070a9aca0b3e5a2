package mediabrowser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

var testDialect = Dialect{
	ServerType: domain.ServerTypeEmby,
	AuthStyle:  AuthStyleEmby,
	ClientName: "EmbyWatch",
	DeviceName: "EmbyWatch",
	Version:    "1.0.0",
}

func newTestClient(t *testing.T, srv *httptest.Server, dialect Dialect) *Client {
	t.Helper()
	return NewClient(srv.URL+"/", dialect, Options{
		DeviceID:   "device-1",
		RetryDelay: time.Millisecond,
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestProbeAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/System/Info", r.URL.Path)
		assert.Contains(t, r.Header.Get("X-Emby-Authorization"), `DeviceId="device-1"`)
		if r.Header.Get("X-Emby-Token") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(t, w, SystemInfo{ServerName: "Den"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, testDialect)

	require.NoError(t, c.ProbeAPIKey(context.Background(), "good-key"))
	assert.ErrorIs(t, c.ProbeAPIKey(context.Background(), "bad-key"), domain.ErrAuthFailed)
}

func TestAuthenticateByName_Jellyfin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Users/AuthenticateByName", r.URL.Path)
		assert.NotContains(t, r.Header.Get("Authorization"), "Token=")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["Username"] != "alice" || body["Pw"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(t, w, AuthResponse{AccessToken: "tok", User: User{ID: "u1"}})
	}))
	defer srv.Close()

	dialect := testDialect
	dialect.ServerType = domain.ServerTypeJellyfin
	dialect.AuthStyle = AuthStyleJellyfin
	c := newTestClient(t, srv, dialect)

	cred, err := c.AuthenticateByName(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.Token)
	assert.Equal(t, "u1", cred.UserID)
	assert.Equal(t, domain.CredentialLogin, cred.Source)

	_, err = c.AuthenticateByName(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestAuthenticateByName_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, AuthResponse{})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, testDialect).AuthenticateByName(context.Background(), "a", "b")
	assert.True(t, domain.IsProtocolError(err))
}

func TestJellyfinTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), `Token="tok"`)
		assert.Empty(t, r.Header.Get("X-Emby-Token"))
		writeJSON(t, w, []SessionInfo{})
	}))
	defer srv.Close()

	dialect := testDialect
	dialect.AuthStyle = AuthStyleJellyfin
	_, err := newTestClient(t, srv, dialect).FetchSessions(context.Background(), domain.Credential{Token: "tok"})
	require.NoError(t, err)
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, SystemInfo{ServerName: "Den", Version: "4.8"})
	}))
	defer srv.Close()

	info, err := newTestClient(t, srv, testDialect).FetchSystemInfo(context.Background(), domain.Credential{Token: "k"})
	require.NoError(t, err)
	assert.Equal(t, "Den", info.ServerName)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRequest_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, testDialect).FetchLibraries(context.Background(), domain.Credential{Token: "k"})

	var pe *domain.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusServiceUnavailable, pe.Status)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestDoRequest_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, testDialect).FetchSessions(context.Background(), domain.Credential{Token: "k"})

	var pe *domain.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRequest_ServerOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv, testDialect)
	srv.Close()

	err := c.ProbeAPIKey(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrServerOffline)
}

func TestDoRequest_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, testDialect).FetchLibraries(context.Background(), domain.Credential{Token: "k"})

	var pe *domain.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, pe.Status)
}

func TestFetchLibraries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Library/VirtualFolders", r.URL.Path)
		writeJSON(t, w, []VirtualFolder{
			{Name: "Movies", ItemID: "m1", CollectionType: "movies"},
			{Name: "Broken"},
			{Name: "Anime", ItemID: "a1", CollectionType: "tvshows"},
		})
	}))
	defer srv.Close()

	libs, err := newTestClient(t, srv, testDialect).FetchLibraries(context.Background(), domain.Credential{Token: "k"})
	require.NoError(t, err)
	require.Len(t, libs, 2)
	assert.Equal(t, domain.Library{ID: "m1", Name: "Movies", CollectionType: "movies"}, libs[0])
	assert.Equal(t, "a1", libs[1].ID)
}

func TestFetchItemCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "lib1", q.Get("ParentId"))
		assert.Equal(t, "true", q.Get("Recursive"))
		assert.Equal(t, "Movie,Series,Episode", q.Get("IncludeItemTypes"))
		writeJSON(t, w, ItemsResponse{Items: []Item{
			{Type: "Series"}, {Type: "Episode"}, {Type: "Episode"},
			{Type: "Movie"}, {Type: "Season"},
		}})
	}))
	defer srv.Close()

	counts, err := newTestClient(t, srv, testDialect).FetchItemCounts(context.Background(), domain.Credential{Token: "k"}, "lib1")
	require.NoError(t, err)
	assert.Equal(t, domain.ItemCounts{Movies: 1, Series: 1, Episodes: 2}, counts)
}

func TestFetchSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []SessionInfo{
			{ID: "idle", UserName: "bob", Client: "Web"},
			{
				ID:       "s2",
				UserName: "alice",
				Client:   "Android TV",
				NowPlayingItem: &Item{
					Name:              "Pilot",
					Type:              "Episode",
					SeriesName:        "Lost",
					ParentIndexNumber: 1,
					IndexNumber:       1,
					RunTimeTicks:      1000,
					MediaStreams: []MediaStream{
						{Type: "Audio"},
						{Type: "Video", Width: 1920, Height: 1080},
					},
				},
				PlayState: PlayState{PositionTicks: 250},
			},
		})
	}))
	defer srv.Close()

	sessions, err := newTestClient(t, srv, testDialect).FetchSessions(context.Background(), domain.Credential{Token: "k"})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Nil(t, sessions[0].NowPlaying)

	np := sessions[1].NowPlaying
	require.NotNil(t, np)
	assert.Equal(t, "Lost - S01E01 - Pilot", np.Title())
	assert.Equal(t, "1920x1080", np.Resolution())
	assert.InDelta(t, 25.0, np.Progress(), 0.001)
	assert.Len(t, domain.ActiveStreams(sessions), 1)
}

func TestDoRequest_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestClient(t, srv, testDialect).ProbeAPIKey(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrServerOffline)
}
