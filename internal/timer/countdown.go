// Package timer provides the per-session countdown.
package timer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Ticker is the subset of time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Events are the callbacks of a countdown run. Both run on the countdown goroutine.
type Events struct {
	OnTick   func(remaining int)
	OnExpire func()
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithTickerFactory swaps the ticker source, mainly for tests.
func WithTickerFactory(f TickerFactory) Option {
	return func(c *Countdown) { c.newTicker = f }
}

// WithInterval changes the tick interval (one second by default).
func WithInterval(d time.Duration) Option {
	return func(c *Countdown) { c.interval = d }
}

// Countdown ticks once per interval from a starting value down to zero,
// firing OnExpire exactly once per run. At most one run is active.
type Countdown struct {
	newTicker TickerFactory
	interval  time.Duration
	log       logrus.FieldLogger

	mu        sync.Mutex
	remaining int
	active    *run
}

type run struct {
	stop chan struct{}
}

func New(log logrus.FieldLogger, opts ...Option) *Countdown {
	c := &Countdown{
		newTicker: NewTicker,
		interval:  time.Second,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a countdown of total ticks, cancelling any run in progress.
func (c *Countdown) Start(total int, ev Events) {
	if total < 0 {
		total = 0
	}

	c.mu.Lock()
	c.stopLocked()
	r := &run{stop: make(chan struct{})}
	c.active = r
	c.remaining = total
	c.mu.Unlock()

	if total == 0 {
		go c.expireNow(r, ev)
		return
	}
	go c.loop(r, c.newTicker(c.interval), ev)
}

// Stop cancels the active run. It never blocks on callbacks and is safe to call repeatedly.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

// Remaining returns the last value reached by the countdown.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a run is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

func (c *Countdown) stopLocked() {
	if c.active == nil {
		return
	}
	close(c.active.stop)
	c.active = nil
}

func (c *Countdown) loop(r *run, t Ticker, ev Events) {
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C():
		}

		c.mu.Lock()
		if c.active != r {
			c.mu.Unlock()
			return
		}
		c.remaining--
		remaining := c.remaining
		if remaining == 0 {
			c.active = nil
		}
		c.mu.Unlock()

		if ev.OnTick != nil {
			c.safely("tick", func() { ev.OnTick(remaining) })
		}
		if remaining == 0 {
			if ev.OnExpire != nil {
				c.safely("expire", ev.OnExpire)
			}
			return
		}
	}
}

func (c *Countdown) expireNow(r *run, ev Events) {
	c.mu.Lock()
	if c.active != r {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.mu.Unlock()

	if ev.OnExpire != nil {
		c.safely("expire", ev.OnExpire)
	}
}

// safely keeps a panicking callback from killing the countdown goroutine.
func (c *Countdown) safely(event string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.WithFields(logrus.Fields{
				"event": event,
				"panic": rec,
			}).Error("countdown callback panicked")
		}
	}()
	fn()
}
