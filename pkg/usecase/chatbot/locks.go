package chatbot

import "sync"

// keyedLocks serializes work per user ID without a process-wide lock:
// concurrent messages from one user queue up, unrelated users proceed
// in parallel. Entries are reference counted and removed when idle so
// the map does not grow with the total user population.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// acquire blocks until the caller owns the lock for key and returns the
// release function.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*userLock)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &userLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
