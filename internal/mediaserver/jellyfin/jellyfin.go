// Package jellyfin configures the MediaBrowser client for Jellyfin servers.
package jellyfin

import (
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/mediabrowser"
)

const (
	// Color is the Jellyfin brand blue
	Color = 0x00A4DC

	LogoURL = "https://raw.githubusercontent.com/jellyfin/jellyfin-ux/master/branding/SVG/icon-transparent.svg"
)

// Dialect sends the token inside the Authorization header
var Dialect = mediabrowser.Dialect{
	ServerType: domain.ServerTypeJellyfin,
	AuthStyle:  mediabrowser.AuthStyleJellyfin,
	ClientName: "EmbyWatch",
	DeviceName: "EmbyWatch",
	Version:    "1.0.0",
}

// NewClient creates a Jellyfin API client
func NewClient(baseURL string, opts mediabrowser.Options) *mediabrowser.Client {
	return mediabrowser.NewClient(baseURL, Dialect, opts)
}
