package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/activitystore/internal/store"
)

const (
	// ManifestName is the file whose presence marks a snapshot as complete.
	ManifestName = "backup_info.json"
	// TimestampLayout is the timestamp embedded in snapshot names.
	TimestampLayout = "20060102_150405"
	// ArchiveExt is the extension of compressed snapshots.
	ArchiveExt = ".zip"

	lockFileName = ".lock"
)

// Manifest records what a snapshot contains.
type Manifest struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
}

// Snapshot describes a complete backup, either a directory or an archive.
type Snapshot struct {
	Name     string    `json:"name" yaml:"name"`
	Category string    `json:"category" yaml:"category"`
	Time     time.Time `json:"time" yaml:"time"`
	Path     string    `json:"path" yaml:"path"`
	Size     int64     `json:"size" yaml:"size"`
	Archived bool      `json:"archived" yaml:"archived"`
}

// SnapshotName returns {category}_{YYYYMMDD_HHMMSS} for ts in UTC.
func SnapshotName(category string, ts time.Time) string {
	return category + "_" + ts.UTC().Format(TimestampLayout)
}

// ParseSnapshotName splits a snapshot directory or archive name into its
// category and timestamp. The category may itself contain underscores.
func ParseSnapshotName(name string) (string, time.Time, error) {
	base := strings.TrimSuffix(name, ArchiveExt)
	if len(base) < len(TimestampLayout)+2 {
		return "", time.Time{}, fmt.Errorf("snapshot name %q too short", name)
	}
	split := len(base) - len(TimestampLayout) - 1
	if base[split] != '_' {
		return "", time.Time{}, fmt.Errorf("snapshot name %q has no timestamp suffix", name)
	}
	ts, err := time.ParseInLocation(TimestampLayout, base[split+1:], time.UTC)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("snapshot name %q: %w", name, err)
	}
	return base[:split], ts, nil
}

// LockPath returns the lock file serialising backup and retention runs on
// the layout's backup root.
func LockPath(layout store.Layout) string {
	return filepath.Join(layout.BackupsDir(), lockFileName)
}

// ReadManifest loads the manifest of a snapshot directory. A missing manifest
// means the snapshot is incomplete and must not be used.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIncompleteSnapshot, filepath.Base(dir))
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(dir string, m Manifest) error {
	return store.WriteFileAtomic(filepath.Join(dir, ManifestName), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(m)
	})
}
