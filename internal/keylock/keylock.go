// Package keylock provides per-key mutual exclusion.
//
// Stores use it to serialize read-modify-write cycles on one profile while
// letting operations on different profiles run in parallel. Entries are
// reference counted and dropped once nobody holds or waits on them, so the
// map does not grow with the number of profiles ever touched.
//
// USAGE:
//
//	unlock := locks.Lock(uid)
//	defer unlock()
//	p := load(uid)  // read
//	fn(p)           // modify
//	save(p)         // write
//
// LOCK ORDER:
// The Locker's own mutex only guards the map and is never held while waiting
// on a key. Callers must not hold two keys at once; nothing in this module
// does.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock blocks until the lock for key is held and returns the function that
// releases it. The returned function must be called exactly once.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
