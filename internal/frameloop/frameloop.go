package frameloop

import (
	"sync"
	"time"
)

// DefaultRate is the tick frequency used when the owner does not specify
// one, matching a typical display refresh.
const DefaultRate = 60

// Loop is a cancellable repeating task: a ticker-driven callback that keeps
// re-arming itself until stopped. An owner holds at most one running loop;
// Start replaces any previous one.
type Loop struct {
	mu     sync.Mutex
	rate   int
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// New creates a loop ticking rate times per second. Non-positive rates fall
// back to DefaultRate.
func New(rate int) *Loop {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Loop{rate: rate}
}

// Start begins invoking fn once per tick, cancelling any loop previously
// started on this Loop. fn runs until Stop or Close is called; a false
// return from fn also ends the loop.
func (l *Loop) Start(fn func() bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	if l.closed {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	l.stop = stop
	l.done = done

	interval := time.Second / time.Duration(l.rate)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !fn() {
					return
				}
			}
		}
	}()
}

// Stop cancels the running loop, if any, and waits for the last tick to
// finish. Stopping an idle loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

// Running reports whether a loop is currently active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// Close stops the loop permanently; subsequent Start calls are ignored.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.closed = true
}

func (l *Loop) stopLocked() {
	if l.stop == nil {
		return
	}
	close(l.stop)
	<-l.done
	l.stop = nil
	l.done = nil
}
