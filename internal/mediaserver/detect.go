package mediaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/mediaserver/mediabrowser"
)

const detectTimeout = 10 * time.Second

// DetectServerType probes a server URL to determine if it's Emby or Jellyfin.
// Both answer /System/Info/Public without authentication.
func DetectServerType(ctx context.Context, serverURL string) (domain.ServerType, error) {
	info, err := FetchPublicInfo(ctx, serverURL)
	if err != nil {
		return "", fmt.Errorf("could not detect server type: %w", err)
	}

	product := strings.ToLower(info.ProductName)
	switch {
	case strings.Contains(product, "jellyfin"):
		return domain.ServerTypeJellyfin, nil
	case strings.Contains(product, "emby"):
		return domain.ServerTypeEmby, nil
	case info.ID != "":
		// Older Emby builds omit ProductName
		return domain.ServerTypeEmby, nil
	default:
		return "", fmt.Errorf("could not detect server type: not a MediaBrowser server (ProductName: %q)", info.ProductName)
	}
}

// FetchPublicInfo reads the unauthenticated /System/Info/Public endpoint
func FetchPublicInfo(ctx context.Context, serverURL string) (*mediabrowser.SystemInfo, error) {
	url := strings.TrimRight(serverURL, "/") + "/System/Info/Public"

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProtocolError{Op: "/System/Info/Public", Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var info mediabrowser.SystemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &domain.ProtocolError{Op: "/System/Info/Public", Body: err.Error()}
	}
	return &info, nil
}
