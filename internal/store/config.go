package store

import "time"

// Config is the explicit configuration handed to store components at
// construction time: where the tree lives and how long its backups and temp
// files are kept.
type Config struct {
	BasePath            string
	BackupRetentionDays int
	TempMaxAgeDays      int
	LockTimeout         time.Duration
}

// Layout resolves the on-disk layout rooted at BasePath.
func (c Config) Layout() (Layout, error) {
	return NewLayout(c.BasePath)
}

// Open prepares the directory tree described by cfg and returns a Store
// writing into it. Options are applied after the configured lock timeout.
func Open(cfg Config, opts ...Option) (*Store, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	if err := layout.EnsureDirectories(); err != nil {
		return nil, err
	}
	return New(layout, append([]Option{WithLockTimeout(cfg.LockTimeout)}, opts...)...), nil
}
