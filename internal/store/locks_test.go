package store

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionLocksSerialiseSameKey(t *testing.T) {
	locks := newPartitionLocks()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.lock("k")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInside)
	require.Equal(t, 0, locks.size())
}

func TestPartitionLocksIndependentKeys(t *testing.T) {
	locks := newPartitionLocks()
	releaseA := locks.lock("a")
	releaseB := locks.lock("b")
	require.Equal(t, 2, locks.size())
	releaseA()
	releaseB()
	require.Equal(t, 0, locks.size())
}
