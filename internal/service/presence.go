package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
)

// PresenceService keeps the bot's status line in sync with the stream count
type PresenceService struct {
	messenger domain.Messenger
	cfg       config.PresenceConfig
	logger    *slog.Logger

	mu   sync.Mutex
	last string
}

// NewPresenceService creates a new PresenceService
func NewPresenceService(messenger domain.Messenger, cfg config.PresenceConfig, logger *slog.Logger) *PresenceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresenceService{messenger: messenger, cfg: cfg, logger: logger}
}

// Update sets the presence text. Unchanged text is not re-sent.
func (p *PresenceService) Update(ctx context.Context, online bool, streams int) error {
	text := FormatPresence(p.cfg, online, streams)

	p.mu.Lock()
	defer p.mu.Unlock()
	if text == p.last {
		return nil
	}

	if err := p.messenger.SetPresence(ctx, text); err != nil {
		return err
	}
	p.last = text
	p.logger.Debug("presence updated", "text", text)
	return nil
}

// FormatPresence expands the configured templates
func FormatPresence(cfg config.PresenceConfig, online bool, streams int) string {
	if !online {
		return cfg.OfflineText
	}
	plural := "s"
	if streams == 1 {
		plural = ""
	}
	return strings.NewReplacer(
		"{count}", strconv.Itoa(streams),
		"{s}", plural,
	).Replace(cfg.StreamText)
}
