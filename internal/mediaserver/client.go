package mediaserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/emby"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/jellyfin"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/mediabrowser"
)

// Branding is the look of the dashboard for a backend
type Branding struct {
	ProductName   string
	Color         int
	LogoURL       string
	FooterIconURL string
}

// BrandingFor returns the default branding of a server type
func BrandingFor(t domain.ServerType) Branding {
	switch t {
	case domain.ServerTypeJellyfin:
		return Branding{
			ProductName:   "Jellyfin",
			Color:         jellyfin.Color,
			LogoURL:       jellyfin.LogoURL,
			FooterIconURL: jellyfin.LogoURL,
		}
	default:
		return Branding{
			ProductName:   "Emby",
			Color:         emby.Color,
			LogoURL:       emby.LogoURL,
			FooterIconURL: emby.SmallLogoURL,
		}
	}
}

// NewClient creates a MediaServerClient for the configured server type.
// An empty type is resolved by probing the server.
func NewClient(ctx context.Context, cfg *config.Config, deviceID string, logger *slog.Logger) (*mediabrowser.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Server.URL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	serverType := cfg.Server.Type
	if serverType == "" {
		detected, err := DetectServerType(ctx, cfg.Server.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("detected media server", "type", detected, "url", cfg.Server.URL)
		serverType = detected
	}

	opts := mediabrowser.Options{
		Timeout:  cfg.Server.RequestTimeout,
		DeviceID: deviceID,
		Logger:   logger,
	}

	switch serverType {
	case domain.ServerTypeEmby:
		return emby.NewClient(cfg.Server.URL, opts), nil
	case domain.ServerTypeJellyfin:
		return jellyfin.NewClient(cfg.Server.URL, opts), nil
	default:
		return nil, fmt.Errorf("unknown server type: %s", serverType)
	}
}
