// Package locks provides per-case mutual exclusion. Different keys never
// block each other.
package locks

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrNotAcquired is returned when the context ends before the lock is free.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work on one key. The returned release func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process keyed lock.
type Local struct {
	mu   sync.Mutex
	keys map[string]*slot
}

type slot struct {
	ch   chan struct{} // one token; holding it means holding the lock
	refs int
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquireSlot(key)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key, s)
		return nil, errors.Wrapf(ErrNotAcquired, "key %s: %v", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key, s)
		})
	}, nil
}

func (l *Local) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.keys[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.keys[key] = s
	}
	s.refs++
	return s
}

// releaseSlot drops the slot once nobody holds or waits for it.
func (l *Local) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.keys, key)
	}
}
