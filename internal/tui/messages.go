package tui

import (
	"time"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

// Message types for the TUI

// DashboardLoadedMsg carries a freshly rendered dashboard. Err is set when
// the dashboard shows the server offline.
type DashboardLoadedMsg struct {
	Dashboard *domain.Dashboard
	Err       error
	At        time.Time
}

// tickMsg triggers the periodic refresh
type tickMsg time.Time
