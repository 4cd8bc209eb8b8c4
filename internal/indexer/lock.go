package indexer

import (
	"errors"
	"sync/atomic"
)

// ErrIndexingInProgress is returned when an index run is requested while another holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

// IndexLock guards against overlapping index runs. Callers that lose the race
// report "indexing in progress" instead of queueing.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether an index run is in progress
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
