package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrServerOffline indicates the media server is unreachable
	ErrServerOffline = errors.New("media server is unreachable")

	// ErrAuthFailed indicates the server rejected the credential
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotConfigured indicates neither an API key nor a username/password is set
	ErrNotConfigured = errors.New("no media server credentials configured")

	// ErrMessageNotFound indicates the remembered dashboard message no longer exists
	ErrMessageNotFound = errors.New("dashboard message not found")

	// ErrMessageForbidden indicates the bot may not edit or post in the channel
	ErrMessageForbidden = errors.New("missing permission for dashboard channel")
)

// ProtocolError reports an unexpected status or malformed payload from the
// media server. It is treated as transient.
type ProtocolError struct {
	Op     string
	Status int
	Body   string
}

func (e *ProtocolError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// IsProtocolError reports whether err wraps a *ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
