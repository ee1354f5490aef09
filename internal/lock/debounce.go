package lock

import (
	"context"
	"sync"
	"time"

	"bilancio/internal/core"
)

// DebounceLock grants at most one acquisition of a name per window. A caller
// arriving inside the window waits for it to end; a later caller supersedes
// the waiting one, whose Acquire returns false.
//
// Entries are never swept, so the table grows with the number of distinct
// names used.
type DebounceLock struct {
	mu      sync.Mutex
	clock   Clock
	window  time.Duration
	entries map[string]*debounceEntry
}

type debounceEntry struct {
	lastGrant time.Time
	waiter    chan bool
}

func NewDebounceLock(clock Clock, window time.Duration) *DebounceLock {
	if clock == nil {
		clock = SystemClock()
	}
	return &DebounceLock{
		clock:   clock,
		window:  window,
		entries: make(map[string]*debounceEntry),
	}
}

// Acquire blocks until the lock is granted (true), the caller is superseded
// (false), or ctx ends (*core.LockTimeoutError).
func (l *DebounceLock) Acquire(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	e, ok := l.entries[name]
	if !ok {
		e = &debounceEntry{}
		l.entries[name] = e
	}

	now := l.clock.Now()
	elapsed := now.Sub(e.lastGrant)
	if e.waiter == nil && (e.lastGrant.IsZero() || elapsed >= l.window) {
		e.lastGrant = now
		l.mu.Unlock()
		return true, nil
	}

	if e.waiter != nil {
		e.waiter <- false
	}
	mine := make(chan bool, 1)
	e.waiter = mine

	wait := l.window - elapsed
	if wait < 0 {
		wait = 0
	}
	timer := l.clock.After(wait)
	l.mu.Unlock()

	select {
	case granted := <-mine:
		return granted, nil
	case <-timer:
		l.mu.Lock()
		defer l.mu.Unlock()
		if e.waiter != mine {
			return <-mine, nil
		}
		e.waiter = nil
		e.lastGrant = l.clock.Now()
		return true, nil
	case <-ctx.Done():
		l.mu.Lock()
		if e.waiter == mine {
			e.waiter = nil
		}
		l.mu.Unlock()
		return false, &core.LockTimeoutError{Name: name, Err: ctx.Err()}
	}
}

// Len returns the number of names tracked.
func (l *DebounceLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
