package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

const loadTimeout = 60 * time.Second

// LoadFunc renders the current dashboard
type LoadFunc func(ctx context.Context) (*domain.Dashboard, error)

// LoadDashboardCmd renders the dashboard in the background
func LoadDashboardCmd(load LoadFunc) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		d, err := load(ctx)
		return DashboardLoadedMsg{Dashboard: d, Err: err, At: time.Now()}
	}
}

// tickCmd schedules the next automatic refresh
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
