// Package app wires configuration, storage, the media server client and the
// services into a running bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/d3v1l1989/embywatch/internal/classify"
	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/mediabrowser"
	"github.com/d3v1l1989/embywatch/internal/service"
	"github.com/d3v1l1989/embywatch/internal/store"
)

// App holds the long-lived components, built once at startup
type App struct {
	Config  *config.Config
	Store   *store.StateStore
	Client  *mediabrowser.Client
	Session *service.SessionService
	Library *service.LibraryService
	Monitor *service.Monitor
}

// Options controls how an App is assembled
type Options struct {
	// Messenger publishes the dashboard. Nil builds a read-only App that can
	// render but not publish.
	Messenger domain.Messenger

	// SharedState tolerates a state database locked by a running bot by
	// falling back to memory.
	SharedState bool
}

// New assembles an App from cfg
func New(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := openStore(cfg.State.Path, opts.SharedState, logger)
	if err != nil {
		return nil, err
	}

	deviceID, err := st.DeviceID()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load device id: %w", err)
	}

	if opts.Messenger != nil && cfg.Discord.ChannelID != "" {
		imported, err := st.ImportLegacyMessageID(afero.NewOsFs(), cfg.State.LegacyMessageIDFile, cfg.Discord.ChannelID)
		if err != nil {
			logger.Warn("failed to import legacy dashboard message id", "error", err)
		} else if imported {
			logger.Info("imported legacy dashboard message id", "file", cfg.State.LegacyMessageIDFile)
		}
	}

	client, err := mediaserver.NewClient(ctx, cfg, deviceID, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create media client: %w", err)
	}

	session := service.NewSessionService(client, service.Credentials{
		APIKey:   cfg.Server.APIKey,
		Username: cfg.Server.Username,
		Password: cfg.Server.Password,
	}, logger)

	library := service.NewLibraryService(client, session, classify.New(), st, service.LibraryOptions{
		TTL:      cfg.Cache.TTL(),
		Sections: cfg.Sections,
	}, logger)

	deps := service.MonitorDeps{
		Client:   client,
		Session:  session,
		Library:  library,
		Tracker:  service.NewStatusTracker(),
		Renderer: service.NewDashboardRenderer(client.ServerType(), cfg.Dashboard),
	}
	if opts.Messenger != nil {
		deps.Publisher = service.NewDashboardPublisher(opts.Messenger, st, logger)
		deps.Presence = service.NewPresenceService(opts.Messenger, cfg.Presence, logger)
	}

	return &App{
		Config:  cfg,
		Store:   st,
		Client:  client,
		Session: session,
		Library: library,
		Monitor: service.NewMonitor(deps, cfg.Discord.ChannelID, logger),
	}, nil
}

// Close releases the state database
func (a *App) Close() error {
	return a.Store.Close()
}

func openStore(path string, shared bool, logger *slog.Logger) (*store.StateStore, error) {
	st, err := store.Open(path)
	if err == nil {
		return st, nil
	}
	if !shared {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	logger.Warn("state database unavailable, using memory", "path", path, "error", err)
	return store.Open("")
}
