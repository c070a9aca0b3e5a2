package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

// StatusTracker remembers whether the server answered the last poll and
// since when it has been unreachable
type StatusTracker struct {
	now func() time.Time

	mu           sync.Mutex
	online       bool
	offlineSince time.Time
}

// NewStatusTracker creates a tracker that starts out offline
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{now: time.Now}
}

// MarkOnline records a successful poll
func (t *StatusTracker) MarkOnline() {
	t.mu.Lock()
	t.online = true
	t.offlineSince = time.Time{}
	t.mu.Unlock()
	telemetry.SetServerOnline(true)
}

// MarkOffline records a failed poll. The first failure starts the offline clock.
func (t *StatusTracker) MarkOffline() {
	t.mu.Lock()
	if t.online || t.offlineSince.IsZero() {
		t.offlineSince = t.now()
	}
	t.online = false
	t.mu.Unlock()
	telemetry.SetServerOnline(false)
}

// Online reports the result of the last poll
func (t *StatusTracker) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// Status derives the displayed status. connectedSince is when the process
// first authenticated.
func (t *StatusTracker) Status(connectedSince time.Time, activeStreams int) domain.ServerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.online {
		// Not polled yet
		uptime := "Offline"
		if !t.offlineSince.IsZero() {
			uptime = FormatOffline(now.Sub(t.offlineSince))
		}
		return domain.ServerStatus{
			Online:       false,
			Uptime:       uptime,
			OfflineSince: t.offlineSince,
		}
	}

	uptime := "Offline"
	if !connectedSince.IsZero() {
		uptime = FormatUptime(now.Sub(connectedSince))
	}
	return domain.ServerStatus{
		Online:        true,
		Uptime:        uptime,
		ActiveStreams: activeStreams,
	}
}

// FormatUptime renders a duration as zero-padded HH:MM, or "99+ Hours"
// past 99 hours
func FormatUptime(d time.Duration) string {
	hours, minutes := splitDuration(d)
	if hours > 99 {
		return "99+ Hours"
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// FormatOffline renders how long the server has been unreachable
func FormatOffline(d time.Duration) string {
	hours, minutes := splitDuration(d)
	return fmt.Sprintf("Offline for %02d:%02d", hours, minutes)
}

func splitDuration(d time.Duration) (hours, minutes int) {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return total / 60, total % 60
}
