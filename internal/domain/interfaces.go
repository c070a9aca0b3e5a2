package domain

import "context"

// MediaServerClient is the capability set the bot needs from a media
// server. Emby and Jellyfin both implement it.
type MediaServerClient interface {
	// ServerType returns the backend this client speaks to
	ServerType() ServerType

	// ProbeAPIKey verifies an API key against /System/Info
	ProbeAPIKey(ctx context.Context, apiKey string) error

	// AuthenticateByName exchanges a username and password for an access token.
	// The returned credential has no expiry set.
	AuthenticateByName(ctx context.Context, username, password string) (Credential, error)

	FetchSystemInfo(ctx context.Context, cred Credential) (*SystemInfo, error)
	FetchLibraries(ctx context.Context, cred Credential) ([]Library, error)
	FetchItemCounts(ctx context.Context, cred Credential, libraryID string) (ItemCounts, error)
	FetchSessions(ctx context.Context, cred Credential) ([]Session, error)
}

// Messenger is the chat platform surface used by the dashboard.
// EditDashboard returns ErrMessageNotFound or ErrMessageForbidden when the
// platform reports those conditions.
type Messenger interface {
	SendDashboard(ctx context.Context, channelID string, d *Dashboard) (messageID string, err error)
	EditDashboard(ctx context.Context, channelID, messageID string, d *Dashboard) error
	SetPresence(ctx context.Context, text string) error
}
