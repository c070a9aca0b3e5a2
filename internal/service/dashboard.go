package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver"
	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

const (
	defaultDescription = "Real-time server status and statistics"
	maxFieldLength     = 1024 // Discord embed field value limit

	ansiGreen = "\u001b[32m"
	ansiReset = "\u001b[0m"
)

// Field names of the rendered dashboard
const (
	FieldServerStatus  = "Server Status"
	FieldActiveStreams = "Active Streams"
	FieldNowPlaying    = "Now Playing"
	FieldLibraryStats  = "Library Statistics"
)

// DashboardRenderer turns polled data into a platform-neutral dashboard.
// Rendering does no I/O.
type DashboardRenderer struct {
	branding mediaserver.Branding
	cfg      config.DashboardConfig
	now      func() time.Time
}

// NewDashboardRenderer creates a renderer with the backend's branding,
// overridden by non-empty dashboard settings
func NewDashboardRenderer(serverType domain.ServerType, cfg config.DashboardConfig) *DashboardRenderer {
	branding := mediaserver.BrandingFor(serverType)
	if cfg.IconURL != "" {
		branding.LogoURL = cfg.IconURL
	}
	if cfg.FooterIconURL != "" {
		branding.FooterIconURL = cfg.FooterIconURL
	}
	if color, ok := ParseColor(cfg.Color); ok {
		branding.Color = color
	}
	return &DashboardRenderer{branding: branding, cfg: cfg, now: time.Now}
}

// Render builds the dashboard. info may be nil when the server is offline.
func (r *DashboardRenderer) Render(info *domain.SystemInfo, snapshot domain.LibrarySnapshot, status domain.ServerStatus, streams []domain.Session) *domain.Dashboard {
	now := r.now()

	description := r.cfg.Description
	if description == "" {
		description = defaultDescription
	}

	d := &domain.Dashboard{
		Title:         "📺 " + r.serverName(info),
		Description:   description,
		Color:         r.branding.Color,
		ThumbnailURL:  r.branding.LogoURL,
		Footer:        "Powered by EmbyWatch | Last updated at " + now.Format("15:04:05"),
		FooterIconURL: r.branding.FooterIconURL,
		Timestamp:     now,
	}

	d.Fields = append(d.Fields, domain.DashboardField{
		Name:  FieldServerStatus,
		Value: statusText(status),
	})
	d.Fields = append(d.Fields, domain.DashboardField{
		Name:  FieldActiveStreams,
		Value: ansiBlock(fmt.Sprintf("%d active stream%s", status.ActiveStreams, plural(status.ActiveStreams))),
	})

	if status.Online && len(streams) > 0 && r.cfg.MaxStreams > 0 {
		d.Fields = append(d.Fields, domain.DashboardField{
			Name:  FieldNowPlaying,
			Value: truncate(streamLines(streams, r.cfg.MaxStreams), maxFieldLength),
		})
	}

	for i, value := range splitField(libraryEntries(snapshot), maxFieldLength) {
		name := FieldLibraryStats
		if i > 0 {
			name += " (cont.)"
		}
		d.Fields = append(d.Fields, domain.DashboardField{Name: name, Value: value})
	}

	return d
}

func (r *DashboardRenderer) serverName(info *domain.SystemInfo) string {
	switch {
	case r.cfg.Name != "":
		return r.cfg.Name
	case info != nil && info.ServerName != "":
		return info.ServerName
	default:
		return r.branding.ProductName + " Server"
	}
}

func statusText(status domain.ServerStatus) string {
	if status.Online {
		return "🟢 Online\nUptime: " + status.Uptime
	}
	return "🔴 Offline\nUptime: " + status.Uptime
}

// SortLibraries orders libraries by display name, ignoring case, with the
// library ID as tiebreak
func SortLibraries(snapshot domain.LibrarySnapshot) []domain.LibraryStats {
	libs := make([]domain.LibraryStats, 0, len(snapshot))
	for _, stats := range snapshot {
		libs = append(libs, stats)
	}

	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(libs, func(i, j int) bool {
		if cmp := c.CompareString(libs[i].DisplayName, libs[j].DisplayName); cmp != 0 {
			return cmp < 0
		}
		return libs[i].LibraryID < libs[j].LibraryID
	})
	return libs
}

// libraryEntries renders one entry per library that has items
func libraryEntries(snapshot domain.LibrarySnapshot) []string {
	var entries []string
	for _, stats := range SortLibraries(snapshot) {
		if stats.ItemCount <= 0 {
			continue
		}
		emoji := stats.Emoji
		if emoji == "" {
			emoji = "📁"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s **%s**\n", emoji, stats.DisplayName)
		b.WriteString(ansiBlock("Total Items: " + humanize.Comma(int64(stats.ItemCount))))
		b.WriteString("\n")
		if stats.ShowEpisodes && stats.EpisodeCount != nil {
			b.WriteString(ansiBlock("Episodes: " + humanize.Comma(int64(*stats.EpisodeCount))))
			b.WriteString("\n")
		}
		entries = append(entries, b.String())
	}
	return entries
}

func streamLines(streams []domain.Session, limit int) string {
	var b strings.Builder
	for i, s := range streams {
		if i == limit {
			fmt.Fprintf(&b, "\n\n...and %d more", len(streams)-limit)
			break
		}
		if s.NowPlaying == nil {
			continue
		}
		np := s.NowPlaying
		client := s.Client
		if client == "" {
			client = "Unknown"
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%d. %s**\n📱 %s\n📊 %.1f%% | %s", i+1, np.Title(), client, np.Progress(), np.Resolution())
	}
	return b.String()
}

// splitField packs entries into values no longer than limit. An entry that
// alone exceeds the limit is truncated.
func splitField(entries []string, limit int) []string {
	var (
		values  []string
		current strings.Builder
	)
	for _, entry := range entries {
		if utf8.RuneCountInString(entry) > limit {
			entry = truncate(entry, limit)
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(entry) > limit {
			values = append(values, current.String())
			current.Reset()
		}
		current.WriteString(entry)
	}
	if current.Len() > 0 {
		values = append(values, current.String())
	}
	return values
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func ansiBlock(text string) string {
	return "```ansi\n" + ansiGreen + text + ansiReset + "\n```"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// ParseColor parses "#RRGGBB" (the leading # is optional)
func ParseColor(s string) (int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// DashboardPublisher keeps exactly one dashboard message per channel
type DashboardPublisher struct {
	messenger domain.Messenger
	store     domain.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewDashboardPublisher creates a new DashboardPublisher
func NewDashboardPublisher(messenger domain.Messenger, store domain.Store, logger *slog.Logger) *DashboardPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardPublisher{
		messenger: messenger,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish edits the remembered message in place, or creates one when none is
// remembered or the remembered one was deleted. A permission error is
// returned as is and nothing is created.
func (p *DashboardPublisher) Publish(ctx context.Context, channelID string, d *domain.Dashboard) error {
	state, ok := p.store.GetDashboardState(channelID)
	if ok && state.MessageID != "" {
		err := p.messenger.EditDashboard(ctx, channelID, state.MessageID, d)
		switch {
		case err == nil:
			telemetry.RecordPublish("edit")
			state.LastRenderedAt = p.now()
			if err := p.store.SaveDashboardState(channelID, state); err != nil {
				p.logger.Warn("failed to persist dashboard state", "error", err, "channel", channelID)
			}
			return nil
		case errors.Is(err, domain.ErrMessageNotFound):
			p.logger.Info("dashboard message is gone, creating a new one",
				"channel", channelID,
				"message_id", state.MessageID,
			)
			if err := p.store.ClearDashboardState(channelID); err != nil {
				p.logger.Warn("failed to clear dashboard state", "error", err, "channel", channelID)
			}
			return p.create(ctx, channelID, d, "recreate")
		default:
			return fmt.Errorf("edit dashboard: %w", err)
		}
	}

	return p.create(ctx, channelID, d, "create")
}

func (p *DashboardPublisher) create(ctx context.Context, channelID string, d *domain.Dashboard, action string) error {
	messageID, err := p.messenger.SendDashboard(ctx, channelID, d)
	if err != nil {
		return fmt.Errorf("send dashboard: %w", err)
	}
	telemetry.RecordPublish(action)

	// Persisted before the next tick so a restart edits instead of duplicating
	state := domain.DashboardState{MessageID: messageID, LastRenderedAt: p.now()}
	if err := p.store.SaveDashboardState(channelID, state); err != nil {
		return fmt.Errorf("persist dashboard message id: %w", err)
	}
	p.logger.Info("dashboard message created", "channel", channelID, "message_id", messageID)
	return nil
}
