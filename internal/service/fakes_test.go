package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClient struct {
	mu sync.Mutex

	probeErr error
	loginErr error
	infoErr  error
	libsErr  error
	itemsErr map[string]error
	sessErr  error

	libraries []domain.Library
	counts    map[string]domain.ItemCounts
	sessions  []domain.Session

	probes     int
	logins     int
	libCalls   int
	itemCalls  int
	sessCalls  int
	lastTokens []string
}

func (f *fakeClient) ServerType() domain.ServerType { return domain.ServerTypeEmby }

func (f *fakeClient) ProbeAPIKey(_ context.Context, apiKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.probeErr
}

func (f *fakeClient) AuthenticateByName(_ context.Context, username, password string) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return domain.Credential{}, f.loginErr
	}
	return domain.Credential{Token: fmt.Sprintf("token-%d", f.logins), UserID: "u1"}, nil
}

func (f *fakeClient) FetchSystemInfo(_ context.Context, cred domain.Credential) (*domain.SystemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTokens = append(f.lastTokens, cred.Token)
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &domain.SystemInfo{ID: "srv", ServerName: "Home Server", Version: "4.8.0.0"}, nil
}

func (f *fakeClient) FetchLibraries(_ context.Context, cred domain.Credential) ([]domain.Library, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.libCalls++
	f.lastTokens = append(f.lastTokens, cred.Token)
	if f.libsErr != nil {
		return nil, f.libsErr
	}
	return f.libraries, nil
}

func (f *fakeClient) FetchItemCounts(_ context.Context, _ domain.Credential, libraryID string) (domain.ItemCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls++
	if err := f.itemsErr[libraryID]; err != nil {
		return domain.ItemCounts{}, err
	}
	return f.counts[libraryID], nil
}

func (f *fakeClient) FetchSessions(_ context.Context, cred domain.Credential) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessCalls++
	if f.sessErr != nil {
		return nil, f.sessErr
	}
	return f.sessions, nil
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

type fakeMessenger struct {
	mu sync.Mutex

	sendErr error
	editErr error

	nextID    int
	sent      []*domain.Dashboard
	edits     map[string]int
	presences []string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{edits: make(map[string]int)}
}

func (m *fakeMessenger) SendDashboard(_ context.Context, _ string, d *domain.Dashboard) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, d)
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *fakeMessenger) EditDashboard(_ context.Context, _, messageID string, _ *domain.Dashboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits[messageID]++
	return nil
}

func (m *fakeMessenger) SetPresence(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presences = append(m.presences, text)
	return nil
}

// fakeClock is advanced by hand
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
