// Package clock implements the timeline publish/subscribe clock that
// drives annotation layers: a current position in seconds plus an ordered
// set of subscriber callbacks notified synchronously on every change.
package clock

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/mkraev/annoplay/internal/frameloop"
)

// Callback receives the new timeline position.
type Callback func(t float64)

type subscriber struct {
	id int
	cb Callback
}

// Clock holds the current timeline position and its subscribers. The zero
// value is not usable; call New.
type Clock struct {
	mu      sync.Mutex
	time    float64
	subs    []subscriber
	nextID  int
	loop    *frameloop.Loop
	syncing bool
	logger  *log.Logger
}

// New creates a clock whose optional continuous-sync loop ticks at rate
// frames per second (zero means frameloop.DefaultRate).
func New(rate int, logger *log.Logger) *Clock {
	if logger == nil {
		logger = log.Default()
	}
	return &Clock{loop: frameloop.New(rate), logger: logger}
}

// Time returns the current timeline position.
func (c *Clock) Time() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

// SetTime stores the new position and synchronously notifies every
// subscriber, in subscription order, before returning. Setting the value
// already stored is a no-op, so rapid identical updates coalesce. One
// subscriber panicking does not prevent the others from being notified.
func (c *Clock) SetTime(t float64) {
	c.mu.Lock()
	if t == c.time {
		c.mu.Unlock()
		return
	}
	c.time = t
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		c.notify(s, t)
	}
}

func (c *Clock) notify(s subscriber, t float64) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("timeline subscriber panicked", "subscriber", s.id, "err", r)
		}
	}()
	s.cb(t)
}

// Subscribe registers a callback and returns its unsubscribe function.
func (c *Clock) Subscribe(cb Callback) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, cb: cb})
	c.mu.Unlock()

	return func() { c.unsubscribe(id) }
}

func (c *Clock) unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// StartContinuousSync begins a per-frame loop that samples getTime and
// feeds it to SetTime, for drivers (audio players, external transports)
// that do not push updates themselves. Starting while already running is a
// no-op with a warning.
func (c *Clock) StartContinuousSync(getTime func() float64) {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		c.logger.Warn("continuous sync already running")
		return
	}
	c.syncing = true
	c.mu.Unlock()

	c.loop.Start(func() bool {
		c.SetTime(getTime())
		return true
	})
}

// StopContinuousSync cancels the sampling loop, if running.
func (c *Clock) StopContinuousSync() {
	c.mu.Lock()
	c.syncing = false
	c.mu.Unlock()
	c.loop.Stop()
}

// Destroy stops the sampling loop, clears all subscribers, and resets the
// position to zero.
func (c *Clock) Destroy() {
	c.loop.Close()
	c.mu.Lock()
	c.syncing = false
	c.subs = nil
	c.time = 0
	c.mu.Unlock()
}
