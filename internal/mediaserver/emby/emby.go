// Package emby configures the MediaBrowser client for Emby servers.
package emby

import (
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/mediabrowser"
)

const (
	// Color is the Emby brand green (#52B54B)
	Color = 0x52B54B

	LogoURL      = "https://emby.media/resources/Emby_icon_512.png"
	SmallLogoURL = "https://emby.media/resources/Emby_icon_128.png"
)

// Dialect sends X-Emby-Token alongside the client block
var Dialect = mediabrowser.Dialect{
	ServerType: domain.ServerTypeEmby,
	AuthStyle:  mediabrowser.AuthStyleEmby,
	ClientName: "EmbyWatch",
	DeviceName: "EmbyWatch",
	Version:    "1.0.0",
}

// NewClient creates an Emby API client
func NewClient(baseURL string, opts mediabrowser.Options) *mediabrowser.Client {
	return mediabrowser.NewClient(baseURL, Dialect, opts)
}
