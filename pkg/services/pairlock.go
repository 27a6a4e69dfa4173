package services

import "sync"

// pairLocks serializes work on one unordered user pair inside this process.
// The unique pair index still guards against other processes.
type pairLocks struct {
	mu    sync.Mutex
	locks map[[2]uint]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[[2]uint]*pairLock)}
}

// Lock blocks until the pair (lo, hi) is free and returns its release func.
func (p *pairLocks) Lock(lo, hi uint) (unlock func()) {
	key := [2]uint{lo, hi}
	p.mu.Lock()
	l := p.locks[key]
	if l == nil {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *pairLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
