package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

func sampleDashboard() *domain.Dashboard {
	return &domain.Dashboard{
		Title:       "📺 Home Server",
		Description: "Real-time server status and statistics",
		Color:       0x52B54B,
		Fields: []domain.DashboardField{
			{Name: "Server Status", Value: "🟢 Online\nUptime: 01:30"},
			{Name: "Library Statistics", Value: "🎬 **Movies**\n```ansi\n\u001b[32mTotal Items: 120\u001b[0m\n```\n"},
		},
		Footer: "Powered by EmbyWatch | Last updated at 12:00:00",
	}
}

func TestPlainValue(t *testing.T) {
	out := PlainValue("🎬 **Movies**\n```ansi\n\u001b[32mTotal Items: 120\u001b[0m\n```\n")
	assert.NotContains(t, out, "```")
	assert.NotContains(t, out, "\u001b[32m")
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "Movies")
	assert.Contains(t, out, "Total Items: 120")
}

func TestRenderDashboard(t *testing.T) {
	out := RenderDashboard(sampleDashboard(), 80)
	assert.Contains(t, out, "Home Server")
	assert.Contains(t, out, "Server Status")
	assert.Contains(t, out, "Total Items: 120")
	assert.Contains(t, out, "Powered by EmbyWatch")

	assert.Empty(t, RenderDashboard(nil, 80))
}

func TestLoadDashboardCmd(t *testing.T) {
	want := sampleDashboard()
	cmd := LoadDashboardCmd(func(ctx context.Context) (*domain.Dashboard, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "loads run with a deadline")
		return want, nil
	})

	msg, ok := cmd().(DashboardLoadedMsg)
	require.True(t, ok)
	assert.Same(t, want, msg.Dashboard)
	assert.NoError(t, msg.Err)
	assert.False(t, msg.At.IsZero())
}

func TestModel_Update(t *testing.T) {
	m := NewModel(func(context.Context) (*domain.Dashboard, error) { return sampleDashboard(), nil }, time.Minute)
	assert.True(t, m.loading)
	assert.Contains(t, m.View(), "Loading dashboard")

	model, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = model.(Model)
	require.True(t, m.ready)

	model, cmd := m.Update(DashboardLoadedMsg{Dashboard: sampleDashboard(), At: time.Now()})
	m = model.(Model)
	assert.False(t, m.loading)
	assert.NotNil(t, cmd, "next refresh is scheduled")
	assert.Contains(t, m.View(), "Home Server")
	assert.Contains(t, m.View(), "Updated")

	// Offline render keeps the previous dashboard and reports the error
	model, _ = m.Update(DashboardLoadedMsg{Dashboard: nil, Err: errors.New("unreachable"), At: time.Now()})
	m = model.(Model)
	view := m.View()
	assert.Contains(t, view, "Home Server")
	assert.True(t, strings.Contains(view, "Server unavailable"))

	model, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	_ = model
}

func TestModel_RefreshKeyIgnoredWhileLoading(t *testing.T) {
	var calls int
	m := NewModel(func(context.Context) (*domain.Dashboard, error) {
		calls++
		return sampleDashboard(), nil
	}, 0)

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = model.(Model)
	assert.True(t, m.loading)
	assert.Equal(t, 0, calls, "commands are not executed by Update")

	model, _ = m.Update(DashboardLoadedMsg{Dashboard: sampleDashboard(), At: time.Now()})
	m = model.(Model)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = model.(Model)
	assert.True(t, m.loading)
	assert.NotNil(t, cmd)
}
