package tickets

import "sync"

// keyedMutex serialises work per key and forgets keys nobody holds.
type keyedMutex struct {
	mut   sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock locks key and returns the function that unlocks it.
func (k *keyedMutex) Lock(key string) func() {
	k.mut.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = new(refMutex)
		k.locks[key] = m
	}
	m.refs++
	k.mut.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mut.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mut.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mut.Lock()
	defer k.mut.Unlock()
	return len(k.locks)
}
