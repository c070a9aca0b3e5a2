package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	bolt "go.etcd.io/bbolt"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

// Bucket names
var (
	bucketDashboard = []byte("dashboard")
	bucketCache     = []byte("cache")
	bucketMeta      = []byte("meta")
)

const (
	keySnapshot = "library_snapshot"
	keyDeviceID = "device_id"
)

// StateStore implements domain.Store using BoltDB.
type StateStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

var _ domain.Store = (*StateStore)(nil)

// Open opens (or creates) the state database at path. An empty path gives
// a memory-only store.
func Open(path string) (*StateStore, error) {
	if path == "" {
		// Memory-only mode (no persistence)
		return &StateStore{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketDashboard, bucketCache, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &StateStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *StateStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *StateStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *StateStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if s.db != nil {
		err = s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucket).Put([]byte(key), data)
		})
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cache[string(bucket)+":"+key] = data
	s.mu.Unlock()
	return nil
}

func (s *StateStore) delete(bucket []byte, key string) error {
	s.mu.Lock()
	delete(s.cache, string(bucket)+":"+key)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucket); b != nil {
			return b.Delete([]byte(key))
		}
		return nil
	})
}

// === Dashboard message ===

func (s *StateStore) GetDashboardState(channelID string) (domain.DashboardState, bool) {
	var state domain.DashboardState
	if !s.get(bucketDashboard, channelID, &state) || state.MessageID == "" {
		return domain.DashboardState{}, false
	}
	return state, true
}

func (s *StateStore) SaveDashboardState(channelID string, state domain.DashboardState) error {
	return s.set(bucketDashboard, channelID, state)
}

func (s *StateStore) ClearDashboardState(channelID string) error {
	return s.delete(bucketDashboard, channelID)
}

// === Library stats ===

func (s *StateStore) GetLibrarySnapshot() (domain.CacheEntry, bool) {
	var entry domain.CacheEntry
	if !s.get(bucketCache, keySnapshot, &entry) {
		return domain.CacheEntry{}, false
	}
	return entry, true
}

func (s *StateStore) SaveLibrarySnapshot(entry domain.CacheEntry) error {
	return s.set(bucketCache, keySnapshot, entry)
}

// === Identity ===

// DeviceID returns a stable per-installation identifier, generating one on
// first use
func (s *StateStore) DeviceID() (string, error) {
	var id string
	if s.get(bucketMeta, keyDeviceID, &id) && id != "" {
		return id, nil
	}

	id = "embywatch-" + uuid.NewString()
	if err := s.set(bucketMeta, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// legacyMessageID is the file the first bot releases wrote next to their config
type legacyMessageID struct {
	MessageID json.Number `json:"message_id"`
}

// ImportLegacyMessageID adopts the message id from an old
// dashboard_message_id.json when the store has none for channelID.
// The file is renamed afterwards so the import happens once.
func (s *StateStore) ImportLegacyMessageID(fsys afero.Fs, path, channelID string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, ok := s.GetDashboardState(channelID); ok {
		return false, nil
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read legacy message id: %w", err)
	}

	var legacy legacyMessageID
	if err := json.Unmarshal(data, &legacy); err != nil {
		return false, fmt.Errorf("failed to parse legacy message id: %w", err)
	}
	id := legacy.MessageID.String()
	if _, err := strconv.ParseUint(id, 10, 64); err != nil || id == "0" {
		return false, nil
	}

	if err := s.SaveDashboardState(channelID, domain.DashboardState{MessageID: id}); err != nil {
		return false, err
	}

	if err := fsys.Rename(path, path+".imported"); err != nil {
		return true, fmt.Errorf("failed to retire legacy message id file: %w", err)
	}
	return true, nil
}
