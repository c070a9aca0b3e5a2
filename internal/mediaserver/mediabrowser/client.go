// Package mediabrowser is the HTTP client for the MediaBrowser API spoken
// by both Emby and Jellyfin. Backend differences live in a Dialect.
package mediabrowser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	// maxErrorBody caps how much of an error response is kept for logs
	maxErrorBody = 512
)

// AuthStyle selects how the token is attached to requests
type AuthStyle int

const (
	// AuthStyleEmby sends X-Emby-Token next to X-Emby-Authorization
	AuthStyleEmby AuthStyle = iota
	// AuthStyleJellyfin embeds Token="..." in the Authorization header
	AuthStyleJellyfin
)

// Dialect captures what differs between MediaBrowser servers
type Dialect struct {
	ServerType domain.ServerType
	AuthStyle  AuthStyle
	ClientName string
	DeviceName string
	Version    string
}

// Options tune a Client. Zero values pick the defaults.
type Options struct {
	Timeout    time.Duration
	DeviceID   string
	MaxRetries int // negative disables retries
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements domain.MediaServerClient over the MediaBrowser API
type Client struct {
	baseURL    string
	dialect    Dialect
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

var _ domain.MediaServerClient = (*Client)(nil)

// NewClient creates a new MediaBrowser API client
func NewClient(baseURL string, dialect Dialect, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retries := opts.MaxRetries
	switch {
	case retries == 0:
		retries = maxRetries
	case retries < 0:
		retries = 0
	}

	delay := opts.RetryDelay
	if delay <= 0 {
		delay = baseRetryDelay
	}

	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = strings.ToLower(dialect.ClientName) + "-bot"
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dialect:    dialect,
		deviceID:   deviceID,
		httpClient: httpClient,
		logger:     logger.With("server", dialect.ServerType),
		maxRetries: retries,
		retryDelay: delay,
	}
}

// ServerType returns the backend this client speaks to
func (c *Client) ServerType() domain.ServerType {
	return c.dialect.ServerType
}

// BaseURL returns the server URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ProbeAPIKey verifies an API key with an authenticated /System/Info call
func (c *Client) ProbeAPIKey(ctx context.Context, apiKey string) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/System/Info", nil, apiKey, nil)
	return err
}

// AuthenticateByName logs in with a username and password
func (c *Client) AuthenticateByName(ctx context.Context, username, password string) (domain.Credential, error) {
	payload := map[string]string{
		"Username": username,
		"Pw":       password,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/Users/AuthenticateByName", nil, "", payload)
	if err != nil {
		return domain.Credential{}, err
	}

	var authResp AuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return domain.Credential{}, &domain.ProtocolError{Op: "authenticate", Body: err.Error()}
	}
	if authResp.AccessToken == "" {
		return domain.Credential{}, &domain.ProtocolError{Op: "authenticate", Body: "response carried no access token"}
	}

	return domain.Credential{
		Token:  authResp.AccessToken,
		UserID: authResp.User.ID,
		Source: domain.CredentialLogin,
	}, nil
}

// FetchSystemInfo returns server name, version and OS
func (c *Client) FetchSystemInfo(ctx context.Context, cred domain.Credential) (*domain.SystemInfo, error) {
	var info SystemInfo
	if err := c.getJSON(ctx, "/System/Info", nil, cred.Token, &info); err != nil {
		return nil, err
	}
	return mapSystemInfo(info), nil
}

// FetchLibraries returns the server's top-level libraries
func (c *Client) FetchLibraries(ctx context.Context, cred domain.Credential) ([]domain.Library, error) {
	var folders []VirtualFolder
	if err := c.getJSON(ctx, "/Library/VirtualFolders", nil, cred.Token, &folders); err != nil {
		return nil, err
	}
	return MapLibraries(folders), nil
}

// FetchItemCounts tallies movies, series and episodes below a library
func (c *Client) FetchItemCounts(ctx context.Context, cred domain.Credential, libraryID string) (domain.ItemCounts, error) {
	query := url.Values{}
	query.Set("ParentId", libraryID)
	query.Set("Recursive", "true")
	query.Set("IncludeItemTypes", "Movie,Series,Episode")
	query.Set("EnableImages", "false")
	query.Set("EnableUserData", "false")

	var resp ItemsResponse
	if err := c.getJSON(ctx, "/Items", query, cred.Token, &resp); err != nil {
		return domain.ItemCounts{}, err
	}
	return CountItems(resp.Items), nil
}

// FetchSessions returns all sessions, idle ones included
func (c *Client) FetchSessions(ctx context.Context, cred domain.Credential) ([]domain.Session, error) {
	var infos []SessionInfo
	if err := c.getJSON(ctx, "/Sessions", nil, cred.Token, &infos); err != nil {
		return nil, err
	}
	return MapSessions(infos), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, token string, dest any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, token, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &domain.ProtocolError{Op: path, Body: err.Error()}
	}
	return nil
}

// doRequest performs an HTTP request against the server.
// 5xx responses are retried with exponential backoff; other failures are not.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, token string, payload any) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		if bodyBytes, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.attempt(ctx, method, reqURL, path, token, bodyBytes)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isServerError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("media server error, will retry",
				"error", err,
				"attempt", n+1,
				"maxRetries", c.maxRetries,
				"path", path,
			)
		}),
	)
	if err != nil {
		if isServerError(err) {
			c.logger.Error("media server request failed after retries", "error", err, "url", reqURL)
		}
		telemetry.RecordRequestFailure(failureKind(err))
		return nil, err
	}
	return body, nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrServerOffline):
		return "offline"
	case errors.Is(err, domain.ErrAuthFailed):
		return "auth"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case isServerError(err):
		return "server"
	case domain.IsProtocolError(err):
		return "protocol"
	default:
		return "other"
	}
}

func (c *Client) attempt(ctx context.Context, method, reqURL, path, token string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeaders(req, token)

	c.logger.Debug("media server request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("media server request failed", "error", err, "url", c.baseURL)
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, domain.ErrAuthFailed
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	default:
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		if resp.StatusCode < 500 {
			c.logger.Error("media server request error", "status", resp.StatusCode, "body", snippet, "path", path)
		}
		return nil, &domain.ProtocolError{Op: path, Status: resp.StatusCode, Body: snippet}
	}
}

// setAuthHeaders attaches the client identification block and the token
func (c *Client) setAuthHeaders(req *http.Request, token string) {
	switch c.dialect.AuthStyle {
	case AuthStyleJellyfin:
		req.Header.Set("Authorization", c.authorization(token))
	default:
		req.Header.Set("X-Emby-Authorization", c.authorization(""))
		if token != "" {
			req.Header.Set("X-Emby-Token", token)
		}
	}
}

// authorization builds the MediaBrowser authorization block
func (c *Client) authorization(token string) string {
	parts := []string{
		fmt.Sprintf(`MediaBrowser Client="%s"`, c.dialect.ClientName),
		fmt.Sprintf(`Device="%s"`, c.dialect.DeviceName),
		fmt.Sprintf(`DeviceId="%s"`, c.deviceID),
		fmt.Sprintf(`Version="%s"`, c.dialect.Version),
	}
	if token != "" {
		parts = append(parts, fmt.Sprintf(`Token="%s"`, token))
	}
	return strings.Join(parts, ", ")
}

func isServerError(err error) bool {
	var pe *domain.ProtocolError
	return errors.As(err, &pe) && pe.Status >= 500
}
