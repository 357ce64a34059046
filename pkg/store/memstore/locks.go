package memstore

import (
	"context"
	"sync"
)

// rowLock is a buffered channel so waiting can honour ctx, refs counts holders and waiters
type rowLock struct {
	ch   chan struct{}
	refs int
}

// rowLocks hands out one exclusive lock per row key, a key is dropped once nobody holds or waits for it
type rowLocks struct {
	mu    sync.Mutex
	locks map[string]*rowLock
}

func newRowLocks() *rowLocks {
	return &rowLocks{locks: make(map[string]*rowLock)}
}

func (l *rowLocks) acquire(key string) *rowLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.locks[key]
	if !ok {
		rl = &rowLock{ch: make(chan struct{}, 1)}
		l.locks[key] = rl
	}
	rl.refs++
	return rl
}

func (l *rowLocks) drop(key string, rl *rowLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *rowLocks) lock(ctx context.Context, key string) error {
	rl := l.acquire(key)
	select {
	case rl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, rl)
		return ctx.Err()
	}
}

func (l *rowLocks) unlock(key string) {
	l.mu.Lock()
	rl := l.locks[key]
	l.mu.Unlock()

	<-rl.ch
	l.drop(key, rl)
}

func (l *rowLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
