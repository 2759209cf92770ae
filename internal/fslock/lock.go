// Package fslock provides advisory inter-process file locks.
package fslock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out acquiring file lock")

const (
	minBackoff = 50 * time.Millisecond
	maxBackoff = 2 * time.Second
)

// Lock is a held exclusive lock on a file.
type Lock struct {
	file *os.File
}

// Acquire takes an exclusive flock on path, creating the file if needed. It
// polls with exponential backoff until the lock is free, timeout elapses or
// ctx is cancelled.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return &Lock{file: file}, nil
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		file.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := minBackoff
	for {
		select {
		case <-lockCtx.Done():
			file.Close()
			if errors.Is(lockCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w after %v: %s", ErrLockTimeout, timeout, path)
			}
			return nil, lockCtx.Err()
		case <-time.After(backoff):
			err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
			if err == nil {
				return &Lock{file: file}, nil
			}
			if !errors.Is(err, unix.EWOULDBLOCK) {
				file.Close()
				return nil, fmt.Errorf("flock: %w", err)
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Release drops the lock. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}
