package store

import "sync"

// partitionLocks hands out one mutex per partition key. Entries are
// reference counted and dropped once no writer holds or waits on them.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[string]*partitionLock
}

type partitionLock struct {
	mu   sync.Mutex
	refs int
}

func newPartitionLocks() *partitionLocks {
	return &partitionLocks{locks: make(map[string]*partitionLock)}
}

// lock blocks until the caller holds key and returns the release func.
func (p *partitionLocks) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &partitionLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *partitionLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
