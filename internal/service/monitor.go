package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

// Stages of a poll cycle, reported on failure
const (
	StageAuth       = "auth"
	StageSystemInfo = "system_info"
	StageSessions   = "sessions"
	StagePresence   = "presence"
	StagePublish    = "publish"
)

// StageError tags a cycle failure with the step that failed
type StageError struct {
	Name string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stage returns the failed step
func (e *StageError) Stage() string {
	return e.Name
}

func stageError(stage string, err error) error {
	if errors.Is(err, domain.ErrAuthFailed) || errors.Is(err, domain.ErrNotConfigured) {
		stage = StageAuth
	}
	return &StageError{Name: stage, Err: err}
}

// MonitorStatus is a point-in-time view of the monitor for health endpoints
type MonitorStatus struct {
	Online           bool                    `json:"online"`
	Uptime           string                  `json:"uptime"`
	ServerName       string                  `json:"server_name,omitempty"`
	ServerVersion    string                  `json:"server_version,omitempty"`
	ActiveStreams    int                     `json:"active_streams"`
	ConnectedSince   time.Time               `json:"connected_since,omitempty"`
	CredentialSource domain.CredentialSource `json:"credential_source,omitempty"`
	Libraries        int                     `json:"libraries"`
	StatsFetchedAt   time.Time               `json:"stats_fetched_at,omitempty"`
}

// MonitorDeps are the collaborators of a Monitor
type MonitorDeps struct {
	Client    domain.MediaServerClient
	Session   *SessionService
	Library   *LibraryService
	Tracker   *StatusTracker
	Renderer  *DashboardRenderer
	Publisher *DashboardPublisher
	Presence  *PresenceService
}

// Monitor runs the two poll cycles: presence and dashboard
type Monitor struct {
	client    domain.MediaServerClient
	session   *SessionService
	library   *LibraryService
	tracker   *StatusTracker
	renderer  *DashboardRenderer
	publisher *DashboardPublisher
	presence  *PresenceService
	channelID string
	logger    *slog.Logger

	mu      sync.RWMutex
	info    *domain.SystemInfo
	streams []domain.Session
}

// NewMonitor creates a monitor publishing to channelID
func NewMonitor(deps MonitorDeps, channelID string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = NewStatusTracker()
	}
	return &Monitor{
		client:    deps.Client,
		session:   deps.Session,
		library:   deps.Library,
		tracker:   tracker,
		renderer:  deps.Renderer,
		publisher: deps.Publisher,
		presence:  deps.Presence,
		channelID: channelID,
		logger:    logger,
	}
}

// RefreshPresence fetches sessions and updates the bot presence
func (m *Monitor) RefreshPresence(ctx context.Context) error {
	sessions, err := Do(ctx, m.session, func(cred domain.Credential) ([]domain.Session, error) {
		return m.client.FetchSessions(ctx, cred)
	})
	if err != nil {
		m.tracker.MarkOffline()
		if perr := m.presence.Update(ctx, false, 0); perr != nil {
			m.logger.Warn("failed to set offline presence", "error", perr)
		}
		return stageError(StageSessions, err)
	}

	active := domain.ActiveStreams(sessions)
	m.tracker.MarkOnline()
	m.setStreams(active)

	if err := m.presence.Update(ctx, true, len(active)); err != nil {
		return &StageError{Name: StagePresence, Err: err}
	}
	return nil
}

// RefreshDashboard polls the server, renders the dashboard and publishes it.
// An unreachable server still publishes the offline dashboard with the last
// known library stats.
func (m *Monitor) RefreshDashboard(ctx context.Context) error {
	d, fetchErr := m.BuildDashboard(ctx)
	if err := m.publisher.Publish(ctx, m.channelID, d); err != nil {
		return &StageError{Name: StagePublish, Err: err}
	}
	return fetchErr
}

// BuildDashboard polls the server and renders the dashboard without
// publishing it. The dashboard is always usable; the error reports the
// failed fetch stage when it shows the server offline.
func (m *Monitor) BuildDashboard(ctx context.Context) (*domain.Dashboard, error) {
	var fetchErr error

	info, err := Do(ctx, m.session, func(cred domain.Credential) (*domain.SystemInfo, error) {
		return m.client.FetchSystemInfo(ctx, cred)
	})
	if err != nil {
		fetchErr = stageError(StageSystemInfo, err)
	}

	var active []domain.Session
	if fetchErr == nil {
		sessions, err := Do(ctx, m.session, func(cred domain.Credential) ([]domain.Session, error) {
			return m.client.FetchSessions(ctx, cred)
		})
		if err != nil {
			fetchErr = stageError(StageSessions, err)
		} else {
			active = domain.ActiveStreams(sessions)
		}
	}

	var snapshot domain.LibrarySnapshot
	if fetchErr != nil {
		m.tracker.MarkOffline()
		m.logger.Warn("media server unavailable, rendering offline dashboard", "error", fetchErr)
		snapshot = m.library.Cached().Snapshot
		info = m.lastInfo()
	} else {
		m.tracker.MarkOnline()
		m.setInfo(info)
		m.setStreams(active)
		snapshot, err = m.library.LibraryStats(ctx)
		if err != nil {
			// Stale stats are still rendered
			m.logger.Warn("using cached library stats", "error", err)
		}
	}

	status := m.tracker.Status(m.session.ConnectedSince(), len(active))
	return m.renderer.Render(info, snapshot, status, active), fetchErr
}

// Status returns the current monitor state
func (m *Monitor) Status() MonitorStatus {
	m.mu.RLock()
	info := m.info
	streams := len(m.streams)
	m.mu.RUnlock()

	connected := m.session.ConnectedSince()
	status := m.tracker.Status(connected, streams)
	entry := m.library.Cached()

	out := MonitorStatus{
		Online:           status.Online,
		Uptime:           status.Uptime,
		ActiveStreams:    status.ActiveStreams,
		ConnectedSince:   connected,
		CredentialSource: m.session.Source(),
		Libraries:        len(entry.Snapshot),
		StatsFetchedAt:   entry.FetchedAt,
	}
	if info != nil {
		out.ServerName = info.ServerName
		out.ServerVersion = info.Version
	}
	return out
}

func (m *Monitor) setStreams(active []domain.Session) {
	m.mu.Lock()
	m.streams = active
	m.mu.Unlock()
	telemetry.SetActiveStreams(len(active))
}

func (m *Monitor) setInfo(info *domain.SystemInfo) {
	m.mu.Lock()
	m.info = info
	m.mu.Unlock()
}

func (m *Monitor) lastInfo() *domain.SystemInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}
