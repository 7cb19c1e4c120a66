package shopping

import (
	"sort"
	"sync"
)

type productLock struct {
	mu   sync.Mutex
	refs int
}

// productLocks serializes the read-decrement-save sequence per product name.
// An entry lives only while some caller holds or waits for it.
type productLocks struct {
	mu    sync.Mutex
	locks map[string]*productLock
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[string]*productLock)}
}

// lock acquires the locks for every distinct name in a stable order and
// returns the function releasing them.
func (l *productLocks) lock(names ...string) func() {
	uniq := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		uniq = append(uniq, n)
	}
	sort.Strings(uniq)

	held := make([]*productLock, 0, len(uniq))
	for _, n := range uniq {
		pl := l.acquire(n)
		pl.mu.Lock()
		held = append(held, pl)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(uniq[i], held[i])
		}
	}
}

func (l *productLocks) acquire(name string) *productLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.locks[name]
	if !ok {
		pl = &productLock{}
		l.locks[name] = pl
	}
	pl.refs++
	return pl
}

func (l *productLocks) release(name string, pl *productLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, name)
	}
}

func (l *productLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
