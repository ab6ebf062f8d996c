// Package loop provides the single-threaded event queue that lesson playback
// and speech input run on. Audio completions, timers and recognizer callbacks
// arrive from other goroutines and are posted here, so state owned by the
// player and the speech session is only ever touched from one goroutine.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Run after Close has been called.
var ErrClosed = errors.New("event loop closed")

// Loop runs posted functions one at a time in the order they were posted.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closed  bool
	closeCh chan struct{}
}

// New creates an idle loop. Call Run to start draining it.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// Post queues fn to run on the loop goroutine. It never blocks, so it is safe
// to call from a function already running on the loop. It reports false if
// the loop has been closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run drains the queue until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closeCh:
			return ErrClosed
		case <-l.wake:
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

// Close stops the loop. Pending functions are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.queue = nil
	close(l.closeCh)
}

// Clock returns a Clock whose timers fire on this loop.
func (l *Loop) Clock() Clock {
	return loopClock{l: l}
}

// Timer is a pending call scheduled by a Clock.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call was
	// stopped before it ran.
	Stop() bool
}

// Clock schedules deferred calls.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

type loopClock struct {
	l *Loop
}

func (c loopClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { c.l.Post(fn) })
}

func (c loopClock) Now() time.Time {
	return time.Now()
}
