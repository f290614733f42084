package concurrency

import (
	"context"
	"sync"
)

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process per-account mutex. Entries are reference counted and dropped
// once nobody holds or waits for them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*lockEntry)}
}

var _ Locker = (*LocalLocker)(nil)

// Acquire locks keys in ascending order. If any wait fails, the locks already held are released.
func (l *LocalLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	ordered := Order(keys...)
	held := make([]func(), 0, len(ordered))
	for _, key := range ordered {
		unlock, err := l.lock(ctx, key)
		if err != nil {
			releaseAll(held)()
			return nil, err
		}
		held = append(held, unlock)
	}
	return releaseAll(held), nil
}

func (l *LocalLocker) lock(ctx context.Context, key string) (func(), error) {
	e := l.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, waitError(ctx, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(key)
		})
	}, nil
}

func (l *LocalLocker) ref(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live entries.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
