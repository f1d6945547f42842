// Package lock provides a keyed mutex so that writes scoped to the same
// entity pair serialize without one global lock.
package lock

import "sync"

// Keyed hands out one mutex per string key. Mutexes are never released; the
// key space here is bounded by the number of (patient, provider) pairs seen
// by one process, which is acceptable for the engine's lifetime.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

func (k *Keyed) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *Keyed) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}
