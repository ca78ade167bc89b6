package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store persists one snapshot per issue key.
type Store interface {
	// Read returns the stored snapshot or ErrNotExist.
	Read(ctx context.Context, key string) (*IssueSnapshot, error)
	// Write replaces the stored snapshot for snap.Key.
	Write(ctx context.Context, snap *IssueSnapshot) error
	// Stat returns the last-modified time of the stored record.
	Stat(ctx context.Context, key string) (time.Time, error)
	// Keys lists stored issue keys in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[0-9]+$`)

// CheckKey rejects anything that is not a plain issue key.
func CheckKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return nil
}

// FileStore keeps each snapshot as <dir>/<KEY>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) Read(_ context.Context, key string) (*IssueSnapshot, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	var snap IssueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
	}
	return &snap, nil
}

// Write serializes to a temp file and renames it into place, so readers never see a partial record.
func (s *FileStore) Write(_ context.Context, snap *IssueSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalid)
	}
	if err := CheckKey(snap.Key); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", snap.Key, err)
	}

	path := s.path(snap.Key)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot %s: %w", snap.Key, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot %s: %w", snap.Key, err)
	}

	log.Debug().Str("issue", snap.Key).Str("path", path).Msg("Snapshot written")
	return nil
}

func (s *FileStore) Stat(_ context.Context, key string) (time.Time, error) {
	if err := CheckKey(key); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%s: %w", key, ErrNotExist)
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if CheckKey(key) == nil {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

// Open returns the store backend selected by name ("file" or "sqlite").
func Open(ctx context.Context, backend, dir string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir)
	case "sqlite":
		return OpenSQLite(ctx, filepath.Join(dir, "snapshots.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
