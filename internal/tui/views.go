package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/tui/styles"
)

var (
	ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")
	boldMarker = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// RenderDashboard draws a dashboard the way the chat client would show it
func RenderDashboard(d *domain.Dashboard, width int) string {
	if d == nil {
		return ""
	}
	accent := styles.Accent(d.Color)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Foreground(accent).Render(d.Title))
	b.WriteString("\n")
	if d.Description != "" {
		b.WriteString(styles.SubtitleStyle.Render(d.Description))
		b.WriteString("\n")
	}

	for _, f := range d.Fields {
		b.WriteString("\n")
		b.WriteString(styles.FieldNameStyle.Render(f.Name))
		b.WriteString("\n")
		b.WriteString(PlainValue(f.Value))
		b.WriteString("\n")
	}

	if d.Footer != "" {
		b.WriteString(styles.FooterStyle.Render(d.Footer))
	}

	panel := styles.PanelStyle.BorderForeground(accent)
	if width > 4 {
		panel = panel.Width(width - 2)
	}
	return panel.Render(strings.TrimRight(b.String(), "\n"))
}

// PlainValue strips chat markup from a field value: code fences and ANSI
// colors are dropped and bold markers become bold text
func PlainValue(v string) string {
	var lines []string
	for _, line := range strings.Split(v, "\n") {
		if strings.HasPrefix(line, "```") {
			continue
		}
		lines = append(lines, line)
	}
	out := ansiEscape.ReplaceAllString(strings.Join(lines, "\n"), "")
	return boldMarker.ReplaceAllStringFunc(out, func(m string) string {
		return lipgloss.NewStyle().Bold(true).Render(strings.Trim(m, "*"))
	})
}
