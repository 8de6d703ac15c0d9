package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// SnapshotStore Interface
// =============================================================================

// SnapshotRecord is a stored snapshot list with bookkeeping metadata.
type SnapshotRecord struct {
	Key       string
	Snapshots []TaskSnapshot
	TakenAt   time.Time
}

// SnapshotStore defines the interface for persisting snapshot lists.
// It is a snapshot sink for later restoration by the caller, not a job
// database: the queue itself never reads a store.
type SnapshotStore interface {
	// Save stores the snapshot list under the given key, replacing any
	// previous list for that key
	Save(key string, snaps []TaskSnapshot) error

	// Load retrieves the snapshot list stored under the given key
	Load(key string) ([]TaskSnapshot, error)

	// Keys returns the keys of all stored snapshot lists
	Keys() ([]string, error)

	// Delete removes the snapshot list stored under the given key
	Delete(key string) error
}

// =============================================================================
// MemorySnapshotStore Implementation
// =============================================================================

// MemorySnapshotStore is an in-memory implementation of SnapshotStore.
// It uses sync.Map for concurrent-safe storage.
type MemorySnapshotStore struct {
	data sync.Map // map[string]*SnapshotRecord
}

// NewMemorySnapshotStore creates a new in-memory snapshot store
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func cloneSnapshots(snaps []TaskSnapshot) []TaskSnapshot {
	out := make([]TaskSnapshot, len(snaps))
	for i, s := range snaps {
		s.Dependencies = append([]string(nil), s.Dependencies...)
		out[i] = s
	}
	return out
}

func (s *MemorySnapshotStore) Save(key string, snaps []TaskSnapshot) error {
	if key == "" {
		return fmt.Errorf("snapshot key cannot be empty")
	}

	record := &SnapshotRecord{
		Key:       key,
		Snapshots: cloneSnapshots(snaps),
		TakenAt:   time.Now(),
	}
	s.data.Store(key, record)
	return nil
}

func (s *MemorySnapshotStore) Load(key string) ([]TaskSnapshot, error) {
	raw, ok := s.data.Load(key)
	if !ok {
		return nil, fmt.Errorf("snapshot %s not found", key)
	}

	record := raw.(*SnapshotRecord)
	// Return a copy to prevent external modifications
	return cloneSnapshots(record.Snapshots), nil
}

func (s *MemorySnapshotStore) Keys() ([]string, error) {
	var keys []string
	s.data.Range(func(key, value any) bool {
		keys = append(keys, key.(string))
		return true
	})
	return keys, nil
}

func (s *MemorySnapshotStore) Delete(key string) error {
	s.data.Delete(key)
	return nil
}

// Count returns the number of stored snapshot lists (useful for testing)
func (s *MemorySnapshotStore) Count() int {
	count := 0
	s.data.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

// =============================================================================
// FileSnapshotStore Implementation
// =============================================================================

// FileSnapshotStore persists each snapshot list as one file in a directory,
// encoded by the configured serializer. Keys map to file names, so they must
// be valid path components.
type FileSnapshotStore struct {
	dir        string
	serializer SnapshotSerializer
	mu         sync.Mutex
}

// NewFileSnapshotStore creates a file-backed store rooted at dir, creating
// the directory if needed. A nil serializer defaults to JSON.
func NewFileSnapshotStore(dir string, serializer SnapshotSerializer) (*FileSnapshotStore, error) {
	if serializer == nil {
		serializer = NewJSONSerializer()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir, serializer: serializer}, nil
}

func (s *FileSnapshotStore) path(key string) string {
	return filepath.Join(s.dir, key+"."+s.serializer.Name())
}

func (s *FileSnapshotStore) Save(key string, snaps []TaskSnapshot) error {
	if key == "" || key != filepath.Base(key) {
		return fmt.Errorf("invalid snapshot key %q", key)
	}

	data, err := s.serializer.Serialize(snaps)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileSnapshotStore) Load(key string) ([]TaskSnapshot, error) {
	if key == "" || key != filepath.Base(key) {
		return nil, fmt.Errorf("invalid snapshot key %q", key)
	}

	s.mu.Lock()
	data, err := os.ReadFile(s.path(key))
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	return s.serializer.Deserialize(data)
}

func (s *FileSnapshotStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	suffix := "." + s.serializer.Name()
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		keys = append(keys, name[:len(name)-len(suffix)])
	}
	return keys, nil
}

func (s *FileSnapshotStore) Delete(key string) error {
	if key == "" || key != filepath.Base(key) {
		return fmt.Errorf("invalid snapshot key %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
