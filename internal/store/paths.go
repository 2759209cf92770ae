package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	usersDirName   = "users"
	backupsDirName = "backups"
	tempDirName    = "temp"

	userDirPrefix   = "user_"
	partitionExt    = ".csv"
	partitionLayout = "200601"

	dirPerm = 0o750
)

// ErrInvalidPathComponent is returned when a user id or activity type cannot
// be used as a single directory name.
var ErrInvalidPathComponent = errors.New("invalid path component")

// Layout resolves canonical on-disk locations below a base directory:
//
//	<base>/users/user_<user_id>/<activity_type>/<YYYYMM>.csv
//	<base>/backups/...
//	<base>/temp/...
type Layout struct {
	base string
}

// NewLayout returns a Layout rooted at the absolute form of base.
func NewLayout(base string) (Layout, error) {
	if strings.TrimSpace(base) == "" {
		return Layout{}, fmt.Errorf("base path is required")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve base path %s: %w", base, err)
	}
	return Layout{base: abs}, nil
}

// Base returns the absolute base directory.
func (l Layout) Base() string { return l.base }

// UsersDir returns the root of all user data trees.
func (l Layout) UsersDir() string { return filepath.Join(l.base, usersDirName) }

// BackupsDir returns the root of backup snapshots and archives.
func (l Layout) BackupsDir() string { return filepath.Join(l.base, backupsDirName) }

// TempDir returns the scratch area swept by temp cleanup.
func (l Layout) TempDir() string { return filepath.Join(l.base, tempDirName) }

// EnsureDirectories creates the users, backups and temp roots.
func (l Layout) EnsureDirectories() error {
	for _, dir := range []string{l.UsersDir(), l.BackupsDir(), l.TempDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// ActivityDir returns the directory holding one user's partitions of one type.
func (l Layout) ActivityDir(userID, activityType string) (string, error) {
	if err := ValidatePathComponent("user id", userID); err != nil {
		return "", err
	}
	if err := ValidatePathComponent("activity type", activityType); err != nil {
		return "", err
	}
	return filepath.Join(l.UsersDir(), userDirPrefix+userID, activityType), nil
}

// PartitionFile returns the partition path for the month containing date
// without touching the filesystem.
func (l Layout) PartitionFile(userID, activityType string, date time.Time) (string, error) {
	dir, err := l.ActivityDir(userID, activityType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PartitionName(date)), nil
}

// PartitionPath returns the partition path for the month containing date and
// guarantees its directory exists. Calling it repeatedly is safe.
func (l Layout) PartitionPath(userID, activityType string, date time.Time) (string, error) {
	path, err := l.PartitionFile(userID, activityType, date)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return "", fmt.Errorf("create partition dir: %w", err)
	}
	return path, nil
}

// PartitionName returns the file name of the partition for date's month.
func PartitionName(date time.Time) string {
	return date.Format(partitionLayout) + partitionExt
}

// ParsePartitionName extracts the month from a partition file name.
func ParsePartitionName(name string) (time.Time, bool) {
	if !strings.HasSuffix(name, partitionExt) {
		return time.Time{}, false
	}
	month, err := time.Parse(partitionLayout, strings.TrimSuffix(name, partitionExt))
	if err != nil {
		return time.Time{}, false
	}
	return month, true
}

// ValidatePathComponent rejects values that would not map to exactly one
// directory below their parent.
func ValidatePathComponent(kind, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidPathComponent, kind)
	case value == "." || value == "..":
		return fmt.Errorf("%w: %s %q", ErrInvalidPathComponent, kind, value)
	case strings.ContainsAny(value, `/\`+"\x00"):
		return fmt.Errorf("%w: %s %q contains a separator", ErrInvalidPathComponent, kind, value)
	}
	return nil
}
