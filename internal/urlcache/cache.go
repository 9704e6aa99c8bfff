// internal/urlcache/cache.go
package urlcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// Store maps an organization identity to its last-successful listing URL so
// repeat runs try the known-good candidate first.
//
// Implementations must tolerate concurrent Put calls from different
// organizations' crawls.
type Store interface {
	// Get returns the cached URL for the organization, if any.
	Get(orgID string) (string, bool)

	// Put upserts the last-successful URL for the organization.
	Put(orgID, url string) error
}

// MemoryStore is a map-backed Store for tests and single-shot runs.
type MemoryStore struct {
	mu   sync.RWMutex
	urls map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{urls: make(map[string]string)}
}

func (m *MemoryStore) Get(orgID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.urls[orgID]
	return u, ok
}

func (m *MemoryStore) Put(orgID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[orgID] = url
	return nil
}

type fileEntry struct {
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore persists the mapping as a JSON file. Writes go through an OS-level
// file lock plus rename, so concurrent upserts from different organizations
// never corrupt the file.
type FileStore struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	entries map[string]fileEntry
}

// NewFileStore loads (or lazily creates) the cache file at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	fs := &FileStore{
		path:    path,
		lock:    flock.New(path + ".lock"),
		entries: make(map[string]fileEntry),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) Get(orgID string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.entries[orgID]
	return e.URL, ok
}

func (fs *FileStore) Put(orgID, url string) error {
	if err := fs.lock.Lock(); err != nil {
		return fmt.Errorf("lock url cache: %w", err)
	}
	defer fs.lock.Unlock()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Re-read under the lock so a concurrent process's upsert survives.
	if err := fs.loadLocked(); err != nil {
		log.Warn().Err(err).Str("path", fs.path).Msg("Reloading url cache failed, overwriting")
	}
	fs.entries[orgID] = fileEntry{URL: url, UpdatedAt: time.Now().UTC()}

	data, err := json.MarshalIndent(fs.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal url cache: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write url cache: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace url cache: %w", err)
	}

	log.Debug().Str("org", orgID).Str("url", url).Msg("Promoted URL to cache")
	return nil
}

func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.loadLocked()
}

func (fs *FileStore) loadLocked() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read url cache: %w", err)
	}

	entries := make(map[string]fileEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse url cache: %w", err)
	}
	fs.entries = entries
	return nil
}
