package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/tui/styles"
)

// Vertical layout: single status line plus help
const chromeHeight = 2

// Model is the Bubble Tea model of the dashboard preview
type Model struct {
	load     LoadFunc
	interval time.Duration

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model

	dashboard *domain.Dashboard
	err       error
	loading   bool
	loadedAt  time.Time

	width  int
	height int
	ready  bool
}

// NewModel creates a preview that re-renders every interval
func NewModel(load LoadFunc, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpDescStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpDescStyle

	return Model{
		load:     load,
		interval: interval,
		keys:     DefaultKeyMap(),
		help:     h,
		spinner:  s,
		loading:  true,
	}
}

// Init starts the first render
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, LoadDashboardCmd(m.load))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chromeHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chromeHeight
		}
		m.help.Width = msg.Width
		m.refreshContent()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Refresh):
			if !m.loading {
				m.loading = true
				cmds = append(cmds, m.spinner.Tick, LoadDashboardCmd(m.load))
			}
		}

	case DashboardLoadedMsg:
		m.loading = false
		m.err = msg.Err
		m.loadedAt = msg.At
		if msg.Dashboard != nil {
			m.dashboard = msg.Dashboard
		}
		m.refreshContent()
		if m.interval > 0 {
			cmds = append(cmds, tickCmd(m.interval))
		}

	case tickMsg:
		if !m.loading {
			m.loading = true
			cmds = append(cmds, m.spinner.Tick, LoadDashboardCmd(m.load))
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(RenderDashboard(m.dashboard, m.width))
}

// View renders the preview
func (m Model) View() string {
	if !m.ready {
		return m.spinner.View() + " Loading dashboard..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.statusLine(),
		m.help.View(m.keys),
	)
}

func (m Model) statusLine() string {
	switch {
	case m.loading:
		return m.spinner.View() + " Refreshing..."
	case m.err != nil:
		return styles.ErrorStyle.Render(fmt.Sprintf("Server unavailable: %v", m.err))
	case !m.loadedAt.IsZero():
		return styles.DimStyle.Render("Updated " + humanize.Time(m.loadedAt))
	default:
		return ""
	}
}
