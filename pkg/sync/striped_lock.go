package sync

import (
	"sort"
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space to a set of locks. This provides concurrent data access while also
// limiting the total memory footprint.
type StripedLock struct {
	locks    []base.RWMutex
	hashRing *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
// At least one stripe is always allocated.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks:    make([]base.RWMutex, stripes),
		hashRing: newRing(int(stripes), hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.stripe(key)]
}

// LockAll acquires the stripes covering every key, exclusively for writable
// keys and shared for readonly keys. A stripe holding both kinds of key is
// locked exclusively. Stripes are always acquired in ascending order, so
// concurrent callers with overlapping key sets cannot deadlock.
//
// The returned function releases every acquired stripe.
func (l *StripedLock) LockAll(writable, readonly [][]byte) (unlock func()) {
	exclusive := make(map[int]bool)
	for _, key := range readonly {
		exclusive[l.stripe(key)] = false
	}
	for _, key := range writable {
		exclusive[l.stripe(key)] = true
	}

	stripes := make([]int, 0, len(exclusive))
	for stripe := range exclusive {
		stripes = append(stripes, stripe)
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		if exclusive[stripe] {
			l.locks[stripe].Lock()
		} else {
			l.locks[stripe].RLock()
		}
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			stripe := stripes[i]
			if exclusive[stripe] {
				l.locks[stripe].Unlock()
			} else {
				l.locks[stripe].RUnlock()
			}
		}
	}
}

func (l *StripedLock) stripe(key []byte) int {
	return l.hashRing.shard(key)
}
