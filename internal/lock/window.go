package lock

import (
	"sync"
	"time"

	"bilancio/internal/core"
)

// WindowLock grants a named lock for a fixed window. A second acquisition
// while the window is live fails immediately; the lock expires on its own
// or can be released early by its holder.
//
// Entries are never swept, so the table grows with the number of distinct
// names used.
type WindowLock struct {
	mu      sync.Mutex
	clock   Clock
	window  time.Duration
	next    Token
	holders map[string]holder
}

// Token identifies one grant of a WindowLock. Release only ends the window
// of the grant it names.
type Token uint64

type holder struct {
	token   Token
	expires time.Time
}

func NewWindowLock(clock Clock, window time.Duration) *WindowLock {
	if clock == nil {
		clock = SystemClock()
	}
	return &WindowLock{
		clock:   clock,
		window:  window,
		holders: make(map[string]holder),
	}
}

// Acquire reports whether the lock was granted.
func (l *WindowLock) Acquire(name string) bool {
	_, err := l.TryAcquire(name)
	return err == nil
}

// TryAcquire grants the lock and returns the grant's token, or returns a
// *core.LockNotGrantedError naming when the current holder's window ends.
func (l *WindowLock) TryAcquire(name string) (Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if h, ok := l.holders[name]; ok && now.Before(h.expires) {
		return 0, &core.LockNotGrantedError{Name: name, ExpiresAt: h.expires}
	}
	l.next++
	l.holders[name] = holder{token: l.next, expires: now.Add(l.window)}
	return l.next, nil
}

// Release ends the window for name if token is still the current grant.
// A holder whose window already expired and was granted to someone else
// releases nothing.
func (l *WindowLock) Release(name string, token Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[name]
	if !ok || h.token != token {
		return
	}
	h.expires = l.clock.Now()
	l.holders[name] = h
}

// Len returns the number of names tracked.
func (l *WindowLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.holders)
}
