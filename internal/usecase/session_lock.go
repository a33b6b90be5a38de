package usecase

import (
	"context"
	"fmt"
	"sync"

	"food-router/internal/domain"
)

// SessionLocker serializes request handling per session key. Keys are
// independent: holding one never blocks another.
type SessionLocker struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

type keyMutex struct {
	// sem has capacity 1; a full channel means the key is held.
	sem      chan struct{}
	refCount int
}

// NewSessionLocker creates a new session locker.
func NewSessionLocker() *SessionLocker {
	return &SessionLocker{locks: make(map[string]*keyMutex)}
}

func (sl *SessionLocker) ref(key string) *keyMutex {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	km, ok := sl.locks[key]
	if !ok {
		km = &keyMutex{sem: make(chan struct{}, 1)}
		sl.locks[key] = km
	}
	km.refCount++
	return km
}

func (sl *SessionLocker) unref(key string, km *keyMutex) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	km.refCount--
	if km.refCount == 0 {
		delete(sl.locks, key)
	}
}

func (sl *SessionLocker) releaser(key string, km *keyMutex) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-km.sem
			sl.unref(key, km)
		})
	}
}

// Lock waits until key is free or ctx is done. The returned unlock func
// must be called exactly once; extra calls are ignored.
func (sl *SessionLocker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	km := sl.ref(key)
	select {
	case km.sem <- struct{}{}:
		return sl.releaser(key, km), nil
	case <-ctx.Done():
		sl.unref(key, km)
		return nil, fmt.Errorf("session lock: %w", ctx.Err())
	}
}

// TryLock acquires key without waiting. It returns domain.ErrSessionBusy
// when another request holds the key.
func (sl *SessionLocker) TryLock(key string) (unlock func(), err error) {
	km := sl.ref(key)
	select {
	case km.sem <- struct{}{}:
		return sl.releaser(key, km), nil
	default:
		sl.unref(key, km)
		return nil, domain.NewDomainError("SessionLocker.TryLock", domain.ErrSessionBusy, key)
	}
}

// Held reports whether key is locked or has waiters.
func (sl *SessionLocker) Held(key string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	_, ok := sl.locks[key]
	return ok
}

// ActiveCount returns the number of keys with active or pending locks.
func (sl *SessionLocker) ActiveCount() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return len(sl.locks)
}
