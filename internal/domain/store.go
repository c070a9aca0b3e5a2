package domain

// Store persists the state that must survive a restart (BoltDB + memory)
type Store interface {
	// === Dashboard message ===
	GetDashboardState(channelID string) (DashboardState, bool)
	SaveDashboardState(channelID string, state DashboardState) error
	ClearDashboardState(channelID string) error

	// === Library stats ===
	GetLibrarySnapshot() (CacheEntry, bool)
	SaveLibrarySnapshot(entry CacheEntry) error

	// === Identity ===
	DeviceID() (string, error)

	Close() error
}
