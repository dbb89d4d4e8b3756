package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store reads and writes JSON snapshots under a root directory.
//
// Each key maps to one file. Files are overwritten wholesale on every save
// and never patched incrementally; a write is atomic (temp file + rename)
// so readers never observe a half-written snapshot.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	dir string

	// mu serializes writes per store. Snapshot files are small and writes
	// are infrequent, so a single lock is sufficient.
	mu sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
//
// Parameters:
//   - dir: Root directory for all snapshot files
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: If the directory cannot be created
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// AccountInfoKey returns the key of the account-info snapshot for an account.
func AccountInfoKey(account string) string {
	return filepath.Join(sanitize(account), "account.json")
}

// BuildingsKey returns the key of the building-tree snapshot for an account.
func BuildingsKey(account string) string {
	return filepath.Join(sanitize(account), "buildings.json")
}

// DeviceKey returns the key of a per-device descriptor snapshot.
func DeviceKey(account string, deviceID int) string {
	return filepath.Join(sanitize(account), fmt.Sprintf("device_%d.json", deviceID))
}

// sanitize strips path separators from account names so a configured name
// can never escape the storage root.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// Path returns the absolute path of a key's file.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Ensure creates an empty file for key if none exists yet.
//
// The original service contract expects snapshot files to exist (empty)
// before their first write so that readers can distinguish "not yet
// populated" from "missing account".
func (s *Store) Ensure(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: creating directory for %s: %w", key, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- key built by this package's helpers
	if err != nil {
		return fmt.Errorf("store: ensuring %s: %w", key, err)
	}
	return f.Close()
}

// WriteJSON marshals v as pretty-printed JSON and atomically replaces the
// file for key.
//
// Parameters:
//   - key: Relative file key (use the *Key helpers)
//   - v: Value to marshal
//
// Returns:
//   - error: If marshalling or any filesystem operation fails
func (s *Store) WriteJSON(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshalling %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: creating directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: creating temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: closing temp file for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replacing %s: %w", key, err)
	}
	return nil
}

// ReadJSON reads the file for key and unmarshals it into v.
//
// Returns:
//   - error: ErrNotFound if no file exists, ErrEmpty if the file has not
//     been populated yet, otherwise the read or parse failure
func (s *Store) ReadJSON(key string, v any) error {
	data, err := os.ReadFile(s.Path(key)) // #nosec G304 -- key built by this package's helpers
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("store: reading %s: %w", key, err)
	}

	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, key)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: parsing %s: %w", key, err)
	}
	return nil
}
