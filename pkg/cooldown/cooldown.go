// Package cooldown tracks when each user last received a proactive private
// message and answers whether another may be sent yet.
//
// Entries live in memory for the lifetime of the process. A check followed
// later by a record is not atomic: two concurrent sends to the same user can
// both pass CanSend. The tracker is a throttle, not a lock.
package cooldown

import (
	"container/list"
	"math"
	"sync"
	"time"
)

type entry struct {
	user string
	at   time.Time
}

// Tracker maps user ids to the time of their last successful send.
type Tracker struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently recorded
	maxEntries int
	now        func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMaxEntries bounds the number of tracked users. When the bound is hit
// the least recently recorded user is forgotten, which makes that user
// immediately eligible again. n <= 0 means unbounded.
func WithMaxEntries(n int) Option {
	return func(t *Tracker) { t.maxEntries = n }
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CanSend reports whether window has fully elapsed since the last send to user.
// A user with no record can always be sent to.
func (t *Tracker) CanSend(user string, window time.Duration) bool {
	return t.Remaining(user, window) == 0
}

// RecordSend stores the current time as user's last send, replacing any
// previous value.
func (t *Tracker) RecordSend(user string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if el, ok := t.entries[user]; ok {
		el.Value.(*entry).at = now
		t.order.MoveToFront(el)
		return
	}
	t.entries[user] = t.order.PushFront(&entry{user: user, at: now})

	if t.maxEntries > 0 {
		for t.order.Len() > t.maxEntries {
			oldest := t.order.Back()
			t.order.Remove(oldest)
			delete(t.entries, oldest.Value.(*entry).user)
		}
	}
}

// Remaining returns how long until user may be sent to again; zero if now.
func (t *Tracker) Remaining(user string, window time.Duration) time.Duration {
	t.mu.Lock()
	el, ok := t.entries[user]
	var last time.Time
	if ok {
		last = el.Value.(*entry).at
	}
	now := t.now()
	t.mu.Unlock()

	if !ok {
		return 0
	}
	left := window - now.Sub(last)
	if left <= 0 {
		return 0
	}
	return left
}

// RemainingSeconds is Remaining rounded up to whole seconds.
func (t *Tracker) RemainingSeconds(user string, windowSeconds int) int {
	left := t.Remaining(user, time.Duration(windowSeconds)*time.Second)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// LastSend returns the recorded time for user.
func (t *Tracker) LastSend(user string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.entries[user]
	if !ok {
		return time.Time{}, false
	}
	return el.Value.(*entry).at, true
}

// Len returns the number of tracked users.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
