package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key stays held past the wait time
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Locker serializes work on a key. The returned func releases the lock and
// is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
	wait  time.Duration
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates a keyed mutex. wait <= 0 waits until ctx is done.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry), wait: wait}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	var timeout <-chan time.Time
	if k.wait > 0 {
		timer := time.NewTimer(k.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	case <-timeout:
		k.release(key, e)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
